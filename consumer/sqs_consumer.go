package consumer

import (
	"context"
	"encoding/json"

	"github.com/xturavaina/nacento-connector/models"
	awspkg "github.com/xturavaina/nacento-connector/pkg/aws"
	"github.com/xturavaina/nacento-connector/services"

	"go.uber.org/zap"
)

// GalleryConsumer drains the task queue and runs the per-SKU reconciliation
// for each schedulable unit. A processing error leaves the message on the
// queue; retry policy belongs entirely to SQS.
type GalleryConsumer struct {
	bulk   *services.BulkService
	queue  *awspkg.SQSQueue
	logger *zap.Logger
}

// NewGalleryConsumer creates a new GalleryConsumer.
func NewGalleryConsumer(bulk *services.BulkService, queue *awspkg.SQSQueue, logger *zap.Logger) *GalleryConsumer {
	return &GalleryConsumer{bulk: bulk, queue: queue, logger: logger}
}

// Start long-polls until the context is cancelled.
func (c *GalleryConsumer) Start(ctx context.Context) {
	c.queue.StartPolling(ctx, c.HandleMessage)
}

// HandleMessage processes one queue message. Unparseable or structurally
// invalid messages are acknowledged (returning nil deletes them) so a poison
// message cannot loop forever; reconciliation failures are returned so SQS
// redelivers the unit.
func (c *GalleryConsumer) HandleMessage(ctx context.Context, body string) error {
	var msg models.ProcessGalleryMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		c.logger.Error("dropping unparseable queue message", zap.Error(err))
		return nil
	}

	if msg.Type == models.MessageTypeHealthcheck || msg.BatchID == models.MessageTypeHealthcheck {
		c.logger.Info("healthcheck message ignored")
		return nil
	}

	if msg.SKU == "" {
		c.logger.Error("dropping queue message with empty SKU", zap.String("batch_id", msg.BatchID))
		return nil
	}

	if err := c.bulk.ProcessOne(ctx, msg.SKU, normalizeImages(msg.Images)); err != nil {
		c.logger.Error("gallery unit failed",
			zap.String("batch_id", msg.BatchID),
			zap.String("sku", msg.SKU),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// normalizeImages sanitizes the wire payload once, at the boundary: empty
// role names are dropped so nothing deeper in the pipeline branches on shape.
func normalizeImages(images []models.ImageEntry) []models.ImageEntry {
	out := make([]models.ImageEntry, 0, len(images))
	for _, img := range images {
		roles := make([]string, 0, len(img.Roles))
		for _, r := range img.Roles {
			if r != "" {
				roles = append(roles, r)
			}
		}
		img.Roles = roles
		out = append(out, img)
	}
	return out
}
