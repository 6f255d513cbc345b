package models

import (
	"time"
)

// DefaultStoreID is the single store view all gallery rows are scoped to.
// Multi-store fan-out would extend the per-view row key.
const DefaultStoreID = 0

// MediaGalleryAttributeCode identifies the gallery attribute in the
// attributes table.
const MediaGalleryAttributeCode = "media_gallery"

// Image role names assignable per product.
const (
	RoleBaseImage  = "image"
	RoleSmallImage = "small_image"
	RoleThumbnail  = "thumbnail"
)

// Product is the catalog entity a gallery belongs to.
type Product struct {
	EntityID  int64     `gorm:"column:entity_id;primaryKey;autoIncrement" json:"entity_id"`
	SKU       string    `gorm:"column:sku;type:varchar(64);not null;uniqueIndex" json:"sku"`
	Name      string    `gorm:"column:name;type:varchar(255)" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the GORM default.
func (Product) TableName() string { return "products" }

// Attribute maps attribute codes (e.g. "media_gallery") to their numeric ids.
type Attribute struct {
	AttributeID   int64  `gorm:"column:attribute_id;primaryKey;autoIncrement" json:"attribute_id"`
	AttributeCode string `gorm:"column:attribute_code;type:varchar(64);not null;uniqueIndex" json:"attribute_code"`
}

func (Attribute) TableName() string { return "attributes" }

// MediaGallery is the core value row: one row per distinct image file,
// shared across store views. Unique per (attribute_id, value).
type MediaGallery struct {
	ValueID     int64  `gorm:"column:value_id;primaryKey;autoIncrement" json:"value_id"`
	AttributeID int64  `gorm:"column:attribute_id;not null;index" json:"attribute_id"`
	MediaType   string `gorm:"column:media_type;type:varchar(32);not null;default:'image'" json:"media_type"`
	Value       string `gorm:"column:value;type:varchar(255);not null" json:"value"` // relative file path
}

func (MediaGallery) TableName() string { return "media_gallery" }

// MediaGalleryValueToEntity links a core value row to an owning product.
type MediaGalleryValueToEntity struct {
	ValueID  int64 `gorm:"column:value_id;primaryKey" json:"value_id"`
	EntityID int64 `gorm:"column:entity_id;primaryKey;index" json:"entity_id"`
}

func (MediaGalleryValueToEntity) TableName() string { return "media_gallery_value_to_entity" }

// MediaGalleryValue is the per-store-view row carrying label, position and
// disabled for one image on one product.
type MediaGalleryValue struct {
	RecordID int64  `gorm:"column:record_id;primaryKey;autoIncrement" json:"record_id"`
	ValueID  int64  `gorm:"column:value_id;not null;index" json:"value_id"`
	StoreID  int    `gorm:"column:store_id;not null;default:0" json:"store_id"`
	EntityID int64  `gorm:"column:entity_id;not null;index" json:"entity_id"`
	Label    string `gorm:"column:label;type:varchar(255)" json:"label"`
	Position int    `gorm:"column:position;not null;default:0" json:"position"`
	Disabled bool   `gorm:"column:disabled;not null;default:false" json:"disabled"`
}

func (MediaGalleryValue) TableName() string { return "media_gallery_value" }

// MediaGalleryMeta is the fingerprint side table keyed by record_id, owned
// separately from the per-view row so content tracking is decoupled from
// label/position edits. Row is removed with its owning value row.
type MediaGalleryMeta struct {
	RecordID  int64     `gorm:"column:record_id;primaryKey" json:"record_id"`
	S3ETag    *string   `gorm:"column:s3_etag;type:varchar(255)" json:"s3_etag"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Value MediaGalleryValue `gorm:"foreignKey:RecordID;references:RecordID;constraint:OnDelete:CASCADE" json:"-"`
}

func (MediaGalleryMeta) TableName() string { return "media_gallery_meta" }

// ProductImageRole records which gallery file serves a given role
// (image/small_image/thumbnail) for a product in a store view.
type ProductImageRole struct {
	EntityID int64  `gorm:"column:entity_id;primaryKey" json:"entity_id"`
	StoreID  int    `gorm:"column:store_id;primaryKey" json:"store_id"`
	Role     string `gorm:"column:role;type:varchar(64);primaryKey" json:"role"`
	Value    string `gorm:"column:value;type:varchar(255);not null" json:"value"`
}

func (ProductImageRole) TableName() string { return "product_image_roles" }

// ExistingImage is the projection returned by the existence lookup: the core
// value id, the per-view record id, the stored per-view fields and the stored
// fingerprint (nil when the meta row is absent).
type ExistingImage struct {
	ValueID  int64   `json:"value_id"`
	RecordID int64   `json:"record_id"`
	Label    string  `json:"label"`
	Position int     `json:"position"`
	Disabled bool    `json:"disabled"`
	S3ETag   *string `gorm:"column:s3_etag" json:"s3_etag"`
}
