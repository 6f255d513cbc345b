package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/xturavaina/nacento-connector/models"
	awspkg "github.com/xturavaina/nacento-connector/pkg/aws"
	"github.com/xturavaina/nacento-connector/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BulkProcessor is the synchronous bulk reconciliation contract consumed by
// the HTTP front door.
type BulkProcessor interface {
	Process(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error)
}

// BulkService orchestrates the single-SKU reconciler across a deduplicated
// batch, one transaction per SKU. Failure of one SKU never aborts the batch;
// only request-level cancellation propagates as an error.
type BulkService struct {
	db        *gorm.DB
	galleries repository.GalleryRepository
	products  repository.ProductRepository
	gallery   *GalleryService
	cache     *ProductCache
	publisher awspkg.SNSPublisher
	topicARN  string
	logger    *zap.Logger
}

// NewBulkService creates a new BulkService. cache and publisher may be nil.
func NewBulkService(
	db *gorm.DB,
	galleries repository.GalleryRepository,
	products repository.ProductRepository,
	gallery *GalleryService,
	cache *ProductCache,
	publisher awspkg.SNSPublisher,
	topicARN string,
	logger *zap.Logger,
) *BulkService {
	return &BulkService{
		db:        db,
		galleries: galleries,
		products:  products,
		gallery:   gallery,
		cache:     cache,
		publisher: publisher,
		topicARN:  topicARN,
		logger:    logger,
	}
}

// dedupeItems collapses items by SKU, last occurrence winning (the whole item
// is replaced, image lists are not merged). Result preserves first-occurrence
// order. Items with an empty SKU are dropped unless keepEmpty is set, in
// which case they collapse into one "" entry so the caller can reject it.
func dedupeItems(items []models.BulkItem, keepEmpty bool) []models.BulkItem {
	bySku := map[string]models.BulkItem{}
	order := []string{}
	for _, it := range items {
		if it.SKU == "" && !keepEmpty {
			continue
		}
		if _, seen := bySku[it.SKU]; !seen {
			order = append(order, it.SKU)
		}
		bySku[it.SKU] = it
	}
	out := make([]models.BulkItem, 0, len(order))
	for _, sku := range order {
		out = append(out, bySku[sku])
	}
	return out
}

// Process reconciles every unique SKU in the request and returns the
// aggregate result. Per-SKU errors are contained and surfaced in the result,
// never thrown; the returned error is non-nil only when the context is done.
func (s *BulkService) Process(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error) {
	result := &models.BulkResult{RequestID: req.RequestID}

	unique := dedupeItems(req.Items, false)
	result.Stats.SkusSeen = len(unique)

	for _, item := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Results = append(result.Results, s.processSKU(ctx, item, &result.Stats))
	}

	s.publishSummary(ctx, result)
	return result, nil
}

func (s *BulkService) processSKU(ctx context.Context, item models.BulkItem, stats *models.BulkStats) models.BulkSkuResult {
	skuResult := models.BulkSkuResult{SKU: item.SKU, ImageStats: &models.ImageStats{}}

	entityID, err := s.resolveProduct(ctx, item.SKU)
	if err != nil {
		code := models.ErrCodeException
		if errors.Is(err, gorm.ErrRecordNotFound) {
			code = models.ErrCodeProductNotFound
		} else {
			s.logger.Error("product lookup failed", zap.String("sku", item.SKU), zap.Error(err))
		}
		skuResult.Error = &code
		stats.Error++
		return skuResult
	}
	skuResult.ProductID = &entityID

	var imageStats *models.ImageStats
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.gallery.WithRepos(s.galleries.WithTx(tx), s.products.WithTx(tx))
		var err error
		imageStats, err = svc.Reconcile(ctx, item.SKU, item.Images)
		return err
	})
	if txErr != nil {
		code := models.ErrCodeException
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			// Product vanished between resolution and the transaction.
			code = models.ErrCodeProductNotFound
		}
		s.logger.Error("SKU rolled back", zap.String("sku", item.SKU), zap.Error(txErr))
		skuResult.Error = &code
		stats.Error++
		return skuResult
	}

	skuResult.ImageStats = imageStats
	stats.OK++
	stats.Merge(imageStats)
	return skuResult
}

// ProcessOne runs the per-SKU reconciliation in its own transaction. Used by
// the queue consumer adapter; a returned error means the unit failed and the
// queue's retry policy takes over.
func (s *BulkService) ProcessOne(ctx context.Context, sku string, images []models.ImageEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.gallery.WithRepos(s.galleries.WithTx(tx), s.products.WithTx(tx))
		_, err := svc.Reconcile(ctx, sku, images)
		return err
	})
}

func (s *BulkService) resolveProduct(ctx context.Context, sku string) (int64, error) {
	if id, ok := s.cache.GetEntityID(ctx, sku); ok {
		return id, nil
	}
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		return 0, err
	}
	s.cache.SetEntityID(ctx, sku, product.EntityID)
	return product.EntityID, nil
}

// publishSummary emits a gallery_synced event after a bulk run. Non-fatal:
// the result is already complete when this runs.
func (s *BulkService) publishSummary(ctx context.Context, result *models.BulkResult) {
	if s.publisher == nil || s.topicARN == "" {
		return
	}
	event := models.GallerySyncedEvent{
		EventType: "gallery_synced",
		RequestID: result.RequestID,
		Stats:     result.Stats,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal summary event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.topicARN, body); err != nil {
		s.logger.Error("failed to publish summary event", zap.Error(err))
		return
	}
	s.logger.Info("published summary event", zap.String("topic", s.topicARN))
}
