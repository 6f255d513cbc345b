package models

// ImageEntry is one desired image for a SKU, as submitted by the caller.
// Image fields are not validated at the HTTP boundary: an empty file_path or
// label is an image-scoped problem the reconciler records as a warning, never
// a reason to reject the whole batch.
type ImageEntry struct {
	FilePath string   `json:"file_path"`
	Label    string   `json:"label"`
	Disabled bool     `json:"disabled"`
	Position int      `json:"position"`
	Roles    []string `json:"roles"`
}

// BulkItem pairs a SKU with its desired gallery. Duplicate SKUs across items
// are resolved last-wins at the batch level (whole item replaced, not merged).
type BulkItem struct {
	SKU    string       `json:"sku"`
	Images []ImageEntry `json:"images"`
}

// BulkRequest is one submission: an optional correlation id plus items.
type BulkRequest struct {
	RequestID *string    `json:"request_id"`
	Items     []BulkItem `json:"items" binding:"required"`
}

// ImageStats counts per-SKU image outcomes.
type ImageStats struct {
	Inserted        int      `json:"inserted"`
	UpdatedValue    int      `json:"updated_value"`
	UpdatedMeta     int      `json:"updated_meta"`
	SkippedNoChange int      `json:"skipped_no_change"`
	Warnings        []string `json:"warnings"`
}

// AddWarning records a non-fatal per-image problem.
func (s *ImageStats) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Error codes surfaced in BulkSkuResult.
const (
	ErrCodeProductNotFound = "product_not_found"
	ErrCodeException       = "exception"
)

// BulkSkuResult is the outcome for one unique SKU in a bulk run.
type BulkSkuResult struct {
	SKU        string      `json:"sku"`
	ProductID  *int64      `json:"product_id"`
	ImageStats *ImageStats `json:"image_stats"`
	Error      *string     `json:"error"`
}

// BulkStats aggregates counters across a whole bulk run.
type BulkStats struct {
	SkusSeen        int `json:"skus_seen"`
	OK              int `json:"ok"`
	Error           int `json:"error"`
	Inserted        int `json:"inserted"`
	UpdatedValue    int `json:"updated_value"`
	UpdatedMeta     int `json:"updated_meta"`
	SkippedNoChange int `json:"skipped_no_change"`
}

// Merge folds one SKU's image stats into the batch totals.
func (b *BulkStats) Merge(s *ImageStats) {
	if s == nil {
		return
	}
	b.Inserted += s.Inserted
	b.UpdatedValue += s.UpdatedValue
	b.UpdatedMeta += s.UpdatedMeta
	b.SkippedNoChange += s.SkippedNoChange
}

// BulkResult is the structured response of a synchronous bulk run.
type BulkResult struct {
	RequestID *string         `json:"request_id"`
	Stats     BulkStats       `json:"stats"`
	Results   []BulkSkuResult `json:"results"`
}

// Item acceptance statuses for the async submission acknowledgment.
const (
	ItemStatusAccepted = "accepted"
	ItemStatusRejected = "rejected"
)

// ItemStatus is the immediate per-item acknowledgment of an async submission.
type ItemStatus struct {
	ID       int    `json:"id"`
	SKU      string `json:"sku"`
	DataHash string `json:"data_hash"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// AsyncResponse is the immediate acknowledgment returned by the planner.
// Processing happens later through the queue consumer.
type AsyncResponse struct {
	BatchID      string       `json:"batch_id"`
	RequestItems []ItemStatus `json:"request_items"`
	Errors       bool         `json:"errors"`
}

// Queue message types.
const MessageTypeHealthcheck = "healthcheck"

// ProcessGalleryMessage is the schedulable unit carried through SQS: one SKU
// with its flattened image payload, tied to the submitting batch.
type ProcessGalleryMessage struct {
	Type    string       `json:"type,omitempty"`
	BatchID string       `json:"batch_id"`
	SKU     string       `json:"sku"`
	Images  []ImageEntry `json:"images"`
}

// GallerySyncedEvent is published after a bulk run completes (non-fatal,
// informational fan-out).
type GallerySyncedEvent struct {
	EventType string    `json:"event_type"`
	RequestID *string   `json:"request_id"`
	Stats     BulkStats `json:"stats"`
	Timestamp string    `json:"timestamp"`
}
