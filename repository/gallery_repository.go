package repository

import (
	"context"
	"fmt"

	"github.com/xturavaina/nacento-connector/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GalleryRepository is the persistence gateway over the gallery value rows,
// the value-to-entity links and the fingerprint side table. Each operation is
// atomic at the statement level; callers group them with WithTx when a wider
// transaction is needed.
type GalleryRepository interface {
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx *gorm.DB) GalleryRepository

	// FindExisting looks up an image by its unique
	// (entityID, attributeID, filePath) triple in the default store view.
	// Returns (nil, nil) when no row matches.
	FindExisting(ctx context.Context, entityID, attributeID int64, filePath string) (*models.ExistingImage, error)

	// InsertCoreValue creates the shared image-value row and returns its id.
	// The caller is responsible for linking it to an entity afterwards.
	InsertCoreValue(ctx context.Context, attributeID int64, filePath string) (int64, error)

	// LinkToEntity upserts the value-to-entity link; a no-op if already linked.
	LinkToEntity(ctx context.Context, valueID, entityID int64) error

	// InsertValueRow creates the per-store-view row and returns the generated
	// record id needed for the fingerprint upsert.
	InsertValueRow(ctx context.Context, row *models.MediaGalleryValue) (int64, error)

	// UpdateValueRow rewrites label/position/disabled in place. Does not touch
	// the fingerprint.
	UpdateValueRow(ctx context.Context, recordID int64, label string, position int, disabled bool) error

	// UpsertFingerprint inserts or updates the fingerprint row keyed by
	// recordID. A nil fingerprint explicitly records "unknown".
	UpsertFingerprint(ctx context.Context, recordID int64, fingerprint *string) error
}

// GormGalleryRepository implements GalleryRepository using GORM.
type GormGalleryRepository struct {
	db *gorm.DB
}

// NewGormGalleryRepository creates a new GormGalleryRepository.
func NewGormGalleryRepository(db *gorm.DB) GalleryRepository {
	return &GormGalleryRepository{db: db}
}

func (r *GormGalleryRepository) WithTx(tx *gorm.DB) GalleryRepository {
	return &GormGalleryRepository{db: tx}
}

const findExistingQuery = `
SELECT mg.value_id, mgv.record_id, mgv.label, mgv.position, mgv.disabled, meta.s3_etag
FROM media_gallery mg
JOIN media_gallery_value_to_entity link ON mg.value_id = link.value_id
JOIN media_gallery_value mgv
  ON mg.value_id = mgv.value_id AND mgv.entity_id = link.entity_id AND mgv.store_id = ?
LEFT JOIN media_gallery_meta meta ON mgv.record_id = meta.record_id
WHERE link.entity_id = ? AND mg.attribute_id = ? AND mg.value = ?`

func (r *GormGalleryRepository) FindExisting(ctx context.Context, entityID, attributeID int64, filePath string) (*models.ExistingImage, error) {
	var rows []models.ExistingImage
	err := r.db.WithContext(ctx).
		Raw(findExistingQuery, models.DefaultStoreID, entityID, attributeID, filePath).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gallery lookup for entity %d file %q: %w", entityID, filePath, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *GormGalleryRepository) InsertCoreValue(ctx context.Context, attributeID int64, filePath string) (int64, error) {
	row := models.MediaGallery{
		AttributeID: attributeID,
		MediaType:   "image",
		Value:       filePath,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert core value for %q: %w", filePath, err)
	}
	return row.ValueID, nil
}

func (r *GormGalleryRepository) LinkToEntity(ctx context.Context, valueID, entityID int64) error {
	link := models.MediaGalleryValueToEntity{ValueID: valueID, EntityID: entityID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	if err != nil {
		return fmt.Errorf("link value %d to entity %d: %w", valueID, entityID, err)
	}
	return nil
}

func (r *GormGalleryRepository) InsertValueRow(ctx context.Context, row *models.MediaGalleryValue) (int64, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("insert value row for value %d: %w", row.ValueID, err)
	}
	return row.RecordID, nil
}

func (r *GormGalleryRepository) UpdateValueRow(ctx context.Context, recordID int64, label string, position int, disabled bool) error {
	err := r.db.WithContext(ctx).
		Model(&models.MediaGalleryValue{}).
		Where("record_id = ?", recordID).
		Updates(map[string]interface{}{
			"label":    label,
			"position": position,
			"disabled": disabled,
		}).Error
	if err != nil {
		return fmt.Errorf("update value row %d: %w", recordID, err)
	}
	return nil
}

func (r *GormGalleryRepository) UpsertFingerprint(ctx context.Context, recordID int64, fingerprint *string) error {
	meta := models.MediaGalleryMeta{RecordID: recordID, S3ETag: fingerprint}
	err := r.db.WithContext(ctx).
		Omit("Value").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"s3_etag", "updated_at"}),
		}).
		Create(&meta).Error
	if err != nil {
		return fmt.Errorf("upsert fingerprint for record %d: %w", recordID, err)
	}
	return nil
}
