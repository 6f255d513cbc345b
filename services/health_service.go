package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xturavaina/nacento-connector/models"
	awspkg "github.com/xturavaina/nacento-connector/pkg/aws"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Check statuses.
const (
	CheckOK   = "ok"
	CheckFail = "fail"
	CheckSkip = "skip"
)

// CheckResult is one diagnostic probe's outcome.
type CheckResult struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// HealthReport is the full doctor output.
type HealthReport struct {
	Service string        `json:"service"`
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// HealthConfig is the slice of service configuration the doctor inspects.
type HealthConfig struct {
	MediaDriver   string
	Bucket        string
	Endpoint      string
	PingObjectKey string
}

// HealthService runs the doctor checks: database reachable, fingerprint side
// table present, object storage configured, queue publishable, and an
// optional HEAD against a configured ping object.
type HealthService struct {
	db           *gorm.DB
	queue        awspkg.QueuePublisher
	fingerprints FingerprintClient
	cfg          HealthConfig
	logger       *zap.Logger
}

// NewHealthService creates a new HealthService. queue and fingerprints may be
// nil; the corresponding checks then fail or skip.
func NewHealthService(db *gorm.DB, queue awspkg.QueuePublisher, fingerprints FingerprintClient, cfg HealthConfig, logger *zap.Logger) *HealthService {
	return &HealthService{db: db, queue: queue, fingerprints: fingerprints, cfg: cfg, logger: logger}
}

// Run executes every check and returns the report. It never returns an
// error; failures are part of the report.
func (s *HealthService) Run(ctx context.Context) *HealthReport {
	report := &HealthReport{Service: "nacento-connector", Healthy: true}
	for _, probe := range []struct {
		name string
		fn   func(context.Context) (string, error)
	}{
		{"database", s.checkDatabase},
		{"meta_table", s.checkMetaTable},
		{"storage_config", s.checkStorageConfig},
		{"queue_publish", s.checkQueuePublish},
		{"storage_ping", s.checkStoragePing},
	} {
		start := time.Now()
		status, err := probe.fn(ctx)
		result := CheckResult{
			Name:       probe.name,
			Status:     status,
			DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		}
		if err != nil {
			result.Error = err.Error()
			s.logger.Warn("doctor check failed", zap.String("check", probe.name), zap.Error(err))
		}
		if status == CheckFail {
			report.Healthy = false
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}

func (s *HealthService) checkDatabase(ctx context.Context) (string, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return CheckFail, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return CheckFail, err
	}
	return CheckOK, nil
}

func (s *HealthService) checkMetaTable(ctx context.Context) (string, error) {
	if !s.db.WithContext(ctx).Migrator().HasTable(&models.MediaGalleryMeta{}) {
		return CheckFail, errMissingMetaTable
	}
	return CheckOK, nil
}

func (s *HealthService) checkStorageConfig(context.Context) (string, error) {
	if s.cfg.MediaDriver != MediaDriverS3 {
		return CheckSkip, nil
	}
	if s.cfg.Bucket == "" || s.cfg.Endpoint == "" {
		return CheckFail, errStorageUnconfigured
	}
	return CheckOK, nil
}

func (s *HealthService) checkQueuePublish(ctx context.Context) (string, error) {
	if s.queue == nil {
		return CheckFail, errQueueUnconfigured
	}
	body, _ := json.Marshal(models.ProcessGalleryMessage{
		Type:    models.MessageTypeHealthcheck,
		BatchID: models.MessageTypeHealthcheck,
	})
	if err := s.queue.SendMessage(ctx, string(body)); err != nil {
		return CheckFail, err
	}
	return CheckOK, nil
}

func (s *HealthService) checkStoragePing(ctx context.Context) (string, error) {
	if s.cfg.PingObjectKey == "" || s.fingerprints == nil {
		return CheckSkip, nil
	}
	// The configured key is HEADed as-is; it need not live under the
	// product-media namespace.
	if s.fingerprints.FetchObject(ctx, s.cfg.PingObjectKey) == nil {
		return CheckFail, errPingObjectUnreachable
	}
	return CheckOK, nil
}

var (
	errMissingMetaTable      = &healthError{"media_gallery_meta table not found, run migrations"}
	errStorageUnconfigured   = &healthError{"remote storage not configured (bucket/endpoint)"}
	errQueueUnconfigured     = &healthError{"task queue not configured"}
	errPingObjectUnreachable = &healthError{"object store unreachable or ping object missing"}
)

type healthError struct{ msg string }

func (e *healthError) Error() string { return e.msg }
