package repository

import (
	"context"
	"fmt"

	"github.com/xturavaina/nacento-connector/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository resolves catalog entities and applies the batched
// role-assignment update.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository

	// FindBySKU returns the product or gorm.ErrRecordNotFound.
	FindBySKU(ctx context.Context, sku string) (*models.Product, error)

	// AttributeIDByCode resolves an attribute code (e.g. "media_gallery") to
	// its numeric id.
	AttributeIDByCode(ctx context.Context, code string) (int64, error)

	// UpdateImageRoles applies all of a product's role assignments in one
	// batched upsert, the single whole-entity update per SKU.
	UpdateImageRoles(ctx context.Context, entityID int64, roles map[string]string, storeID int) error
}

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository.
func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &GormProductRepository{db: tx}
}

func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProductRepository) AttributeIDByCode(ctx context.Context, code string) (int64, error) {
	var a models.Attribute
	if err := r.db.WithContext(ctx).Where("attribute_code = ?", code).First(&a).Error; err != nil {
		return 0, fmt.Errorf("resolve attribute %q: %w", code, err)
	}
	return a.AttributeID, nil
}

func (r *GormProductRepository) UpdateImageRoles(ctx context.Context, entityID int64, roles map[string]string, storeID int) error {
	if len(roles) == 0 {
		return nil
	}
	rows := make([]models.ProductImageRole, 0, len(roles))
	for role, value := range roles {
		rows = append(rows, models.ProductImageRole{
			EntityID: entityID,
			StoreID:  storeID,
			Role:     role,
			Value:    value,
		})
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "store_id"}, {Name: "role"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("update image roles for entity %d: %w", entityID, err)
	}
	return nil
}
