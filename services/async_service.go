package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/xturavaina/nacento-connector/models"
	awspkg "github.com/xturavaina/nacento-connector/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AsyncPlanner is the asynchronous submission contract consumed by the HTTP
// front door.
type AsyncPlanner interface {
	Submit(ctx context.Context, req *models.BulkRequest) (*models.AsyncResponse, error)
}

// AsyncService packages a batch into independently schedulable per-SKU units,
// enqueues them, and returns an immediate acknowledgment with per-item
// accepted/rejected statuses. Actual processing happens later through the
// queue consumer.
type AsyncService struct {
	queue  awspkg.QueuePublisher
	logger *zap.Logger
}

// NewAsyncService creates a new AsyncService.
func NewAsyncService(queue awspkg.QueuePublisher, logger *zap.Logger) *AsyncService {
	return &AsyncService{queue: queue, logger: logger}
}

// Submit deduplicates the request (last item per SKU wins), serializes one
// message per unique SKU and hands the whole set to the queue under a fresh
// batch id. Items with an empty SKU or an unserializable payload are rejected
// in the acknowledgment and never enqueued.
func (s *AsyncService) Submit(ctx context.Context, req *models.BulkRequest) (*models.AsyncResponse, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task queue not configured")
	}

	batchID := uuid.NewString()
	resp := &models.AsyncResponse{BatchID: batchID}

	unique := dedupeItems(req.Items, true)

	bodies := make([]string, 0, len(unique))
	seq := 1
	for _, item := range unique {
		if item.SKU == "" {
			resp.RequestItems = append(resp.RequestItems, s.itemStatus(seq, "", models.ItemStatusRejected, "Missing SKU"))
			resp.Errors = true
			seq++
			continue
		}

		msg := models.ProcessGalleryMessage{
			BatchID: batchID,
			SKU:     item.SKU,
			Images:  flattenImages(item.Images),
		}
		body, err := json.Marshal(msg)
		if err != nil {
			resp.RequestItems = append(resp.RequestItems, s.itemStatus(seq, item.SKU, models.ItemStatusRejected, "Unserializable payload"))
			resp.Errors = true
			seq++
			continue
		}

		bodies = append(bodies, string(body))
		resp.RequestItems = append(resp.RequestItems, s.itemStatus(seq, item.SKU, models.ItemStatusAccepted, ""))
		seq++
	}

	if len(bodies) == 0 {
		s.logger.Warn("no operations scheduled, skipping enqueue",
			zap.String("batch_id", batchID),
			zap.Int("items", len(req.Items)),
		)
		return resp, nil
	}

	if err := s.queue.SendMessageBatch(ctx, bodies); err != nil {
		return nil, fmt.Errorf("enqueue batch %s: %w", batchID, err)
	}

	s.logger.Info("batch scheduled",
		zap.String("batch_id", batchID),
		zap.Int("units", len(bodies)),
	)
	return resp, nil
}

// flattenImages rebuilds the payload as plain field records so no caller
// object shapes leak through the queue.
func flattenImages(images []models.ImageEntry) []models.ImageEntry {
	out := make([]models.ImageEntry, 0, len(images))
	for _, img := range images {
		roles := make([]string, 0, len(img.Roles))
		for _, r := range img.Roles {
			if r != "" {
				roles = append(roles, r)
			}
		}
		out = append(out, models.ImageEntry{
			FilePath: img.FilePath,
			Label:    img.Label,
			Disabled: img.Disabled,
			Position: img.Position,
			Roles:    roles,
		})
	}
	return out
}

func (s *AsyncService) itemStatus(seq int, sku, status, msg string) models.ItemStatus {
	hashInput := sku
	if hashInput == "" {
		hashInput = fmt.Sprintf("#%d", seq)
	}
	sum := md5.Sum([]byte(hashInput))
	return models.ItemStatus{
		ID:       seq,
		SKU:      sku,
		DataHash: hex.EncodeToString(sum[:]),
		Status:   status,
		Message:  msg,
	}
}
