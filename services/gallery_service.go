package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/xturavaina/nacento-connector/models"
	"github.com/xturavaina/nacento-connector/repository"

	"go.uber.org/zap"
)

// GalleryService reconciles one SKU's desired gallery against the stored
// rows: validates each image, checks media existence, fetches the current
// content fingerprint, diffs against the store and issues the minimal
// insert/update operations. Role assignments accumulate across images and
// are flushed once per SKU.
type GalleryService struct {
	galleries    repository.GalleryRepository
	products     repository.ProductRepository
	storage      MediaStorage
	fingerprints FingerprintClient
	logger       *zap.Logger
}

// NewGalleryService creates a new GalleryService.
func NewGalleryService(
	galleries repository.GalleryRepository,
	products repository.ProductRepository,
	storage MediaStorage,
	fingerprints FingerprintClient,
	logger *zap.Logger,
) *GalleryService {
	return &GalleryService{
		galleries:    galleries,
		products:     products,
		storage:      storage,
		fingerprints: fingerprints,
		logger:       logger,
	}
}

// WithRepos returns a copy bound to transaction-scoped repositories, so a
// caller can run one SKU's reconciliation inside its own transaction.
func (s *GalleryService) WithRepos(galleries repository.GalleryRepository, products repository.ProductRepository) *GalleryService {
	c := *s
	c.galleries = galleries
	c.products = products
	return &c
}

// Reconcile processes all images for one SKU. Image-level problems (empty
// fields, missing file) are recorded as warnings and skipped; a product that
// cannot be resolved, or any store write failure, is fatal for the SKU and
// returned as an error. Every accepted image is counted in exactly one of
// inserted/updated_value/updated_meta/skipped_no_change.
func (s *GalleryService) Reconcile(ctx context.Context, sku string, images []models.ImageEntry) (*models.ImageStats, error) {
	stats := &models.ImageStats{}

	s.logger.Info("reconciling gallery",
		zap.String("sku", sku),
		zap.Int("images", len(images)),
	)
	if len(images) == 0 {
		s.logger.Warn("empty image list, nothing to do", zap.String("sku", sku))
		return stats, nil
	}

	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("resolve product %q: %w", sku, err)
	}
	attributeID, err := s.products.AttributeIDByCode(ctx, models.MediaGalleryAttributeCode)
	if err != nil {
		return nil, err
	}

	rolesToUpdate := map[string]string{}

	for _, img := range images {
		filePath := strings.TrimLeft(img.FilePath, "/\\")
		if filePath == "" || img.Label == "" {
			s.warnSkip(stats, sku, filePath, "empty file_path or label")
			continue
		}

		canonical := ToCanonical(filePath)
		if canonical == "" {
			s.warnSkip(stats, sku, filePath, "empty media key after normalization")
			continue
		}
		if err := ValidateCanonical(canonical); err != nil {
			s.warnSkip(stats, sku, filePath, err.Error())
			continue
		}

		mediaPath := "catalog/product/" + canonical
		exists, err := s.storage.Exists(ctx, mediaPath)
		if err != nil {
			s.warnSkip(stats, sku, filePath, "existence check failed: "+err.Error())
			continue
		}
		if !exists {
			s.warnSkip(stats, sku, filePath, "file not found at "+mediaPath)
			continue
		}

		fingerprint := s.fingerprints.Fetch(ctx, canonical)

		existing, err := s.galleries.FindExisting(ctx, product.EntityID, attributeID, filePath)
		if err != nil {
			return nil, s.saveErr(sku, filePath, "lookup", err)
		}

		if existing == nil {
			if err := s.insertImage(ctx, product.EntityID, attributeID, filePath, img, fingerprint); err != nil {
				return nil, s.saveErr(sku, filePath, "insert", err)
			}
			stats.Inserted++
		} else {
			outcome, err := s.updateImage(ctx, existing, img, fingerprint)
			if err != nil {
				return nil, s.saveErr(sku, filePath, "update", err)
			}
			switch outcome {
			case outcomeValueChanged:
				stats.UpdatedValue++
			case outcomeMetaChanged:
				stats.UpdatedMeta++
			default:
				stats.SkippedNoChange++
			}
		}

		for _, role := range img.Roles {
			if role != "" {
				rolesToUpdate[role] = filePath // last role declaration wins
			}
		}
	}

	// One batched role update per SKU, not per image.
	if len(rolesToUpdate) > 0 {
		if err := s.products.UpdateImageRoles(ctx, product.EntityID, rolesToUpdate, models.DefaultStoreID); err != nil {
			return nil, s.saveErr(sku, "", "roles", err)
		}
	}

	s.logger.Info("gallery reconciled",
		zap.String("sku", sku),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated_value", stats.UpdatedValue),
		zap.Int("updated_meta", stats.UpdatedMeta),
		zap.Int("skipped", stats.SkippedNoChange),
		zap.Int("warnings", len(stats.Warnings)),
	)
	return stats, nil
}

func (s *GalleryService) insertImage(ctx context.Context, entityID, attributeID int64, filePath string, img models.ImageEntry, fingerprint *string) error {
	valueID, err := s.galleries.InsertCoreValue(ctx, attributeID, filePath)
	if err != nil {
		return err
	}
	if err := s.galleries.LinkToEntity(ctx, valueID, entityID); err != nil {
		return err
	}
	recordID, err := s.galleries.InsertValueRow(ctx, &models.MediaGalleryValue{
		ValueID:  valueID,
		StoreID:  models.DefaultStoreID,
		EntityID: entityID,
		Label:    img.Label,
		Position: img.Position,
		Disabled: img.Disabled,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("image inserted",
		zap.String("file_path", filePath),
		zap.Int64("value_id", valueID),
		zap.Int64("record_id", recordID),
	)
	return s.galleries.UpsertFingerprint(ctx, recordID, fingerprint)
}

type updateOutcome int

const (
	outcomeNoChange updateOutcome = iota
	outcomeMetaChanged
	outcomeValueChanged
)

// updateImage writes only when something actually changed: content change is
// detected by fingerprint, metadata change by label/position/disabled. When
// both are unchanged neither the row nor the fingerprint is written.
func (s *GalleryService) updateImage(ctx context.Context, existing *models.ExistingImage, img models.ImageEntry, fingerprint *string) (updateOutcome, error) {
	metaChanged := existing.Label != img.Label ||
		existing.Position != img.Position ||
		existing.Disabled != img.Disabled
	valueChanged := !FingerprintsEqual(fingerprint, existing.S3ETag)

	if !metaChanged && !valueChanged {
		return outcomeNoChange, nil
	}

	if err := s.galleries.UpdateValueRow(ctx, existing.RecordID, img.Label, img.Position, img.Disabled); err != nil {
		return 0, err
	}
	if err := s.galleries.UpsertFingerprint(ctx, existing.RecordID, fingerprint); err != nil {
		return 0, err
	}

	if valueChanged {
		return outcomeValueChanged, nil
	}
	return outcomeMetaChanged, nil
}

func (s *GalleryService) warnSkip(stats *models.ImageStats, sku, filePath, reason string) {
	msg := reason
	if filePath != "" {
		msg = filePath + ": " + reason
	}
	stats.AddWarning(msg)
	s.logger.Warn("skipping image",
		zap.String("sku", sku),
		zap.String("file_path", filePath),
		zap.String("reason", reason),
	)
}

func (s *GalleryService) saveErr(sku, filePath, stage string, err error) error {
	s.logger.Error("gallery save failed",
		zap.String("sku", sku),
		zap.String("file_path", filePath),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return fmt.Errorf("could not save gallery for sku %q (%s): %w", sku, stage, err)
}
