package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// QueuePublisher is the minimal producer interface the planner depends on.
type QueuePublisher interface {
	SendMessage(ctx context.Context, body string) error
	SendMessageBatch(ctx context.Context, bodies []string) error
}

// SQSQueue wraps one SQS queue for both producing and long-poll consuming.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewSQSQueue creates a queue wrapper bound to a queue URL.
func NewSQSQueue(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSQueue {
	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		logger:   logger,
	}
}

// QueueURL returns the bound queue URL.
func (q *SQSQueue) QueueURL() string { return q.queueURL }

// SendMessage sends a single message body to the queue.
func (q *SQSQueue) SendMessage(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMessageBatch sends message bodies in chunks of the SQS batch limit (10).
func (q *SQSQueue) SendMessageBatch(ctx context.Context, bodies []string) error {
	for i := 0; i < len(bodies); i += 10 {
		end := i + 10
		if end > len(bodies) {
			end = len(bodies)
		}

		entries := make([]types.SendMessageBatchRequestEntry, 0, end-i)
		for j, body := range bodies[i:end] {
			id := fmt.Sprintf("msg-%d", i+j)
			b := body
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          &id,
				MessageBody: &b,
			})
		}

		out, err := q.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: &q.queueURL,
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		for _, f := range out.Failed {
			return fmt.Errorf("batch entry %s rejected: %s", sdkaws.ToString(f.Id), sdkaws.ToString(f.Message))
		}
	}
	return nil
}

// MessageHandler processes one received message body. A returned error leaves
// the message on the queue so SQS redelivers it after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling long-polls the queue until the context is cancelled, handing
// each message to handler and deleting it only on success.
func (q *SQSQueue) StartPolling(ctx context.Context, handler MessageHandler) {
	q.logger.Info("SQS consumer started", zap.String("queue", q.queueURL))
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("SQS consumer shutting down")
			return
		default:
			q.pollOnce(ctx, handler)
		}
	}
}

func (q *SQSQueue) pollOnce(ctx context.Context, handler MessageHandler) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &q.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   30,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.logger.Error("SQS receive error", zap.Error(err))
		time.Sleep(5 * time.Second)
		return
	}

	for _, msg := range out.Messages {
		if msg.Body == nil || msg.ReceiptHandle == nil {
			q.logger.Error("received SQS message without body or receipt handle")
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			q.logger.Error("message handler failed, leaving message for redelivery", zap.Error(err))
			continue
		}
		if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &q.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			q.logger.Error("failed to delete SQS message", zap.Error(err))
		}
	}
}

// GetQueueURL resolves a queue name to its URL.
func GetQueueURL(ctx context.Context, cfg sdkaws.Config, queueName string) (string, error) {
	client := sqs.NewFromConfig(cfg)
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: &queueName})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL: %w", err)
	}
	return *out.QueueUrl, nil
}
