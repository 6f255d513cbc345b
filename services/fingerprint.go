package services

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FingerprintClient answers "what is the current content fingerprint for this
// canonical media key". Implementations never return an error: any failure
// degrades to nil ("fingerprint unknown") so reconciliation keeps going.
type FingerprintClient interface {
	// Fetch resolves a canonical media tail ("a/b/x.jpg") under the
	// product-media namespace.
	Fetch(ctx context.Context, canonicalKey string) *string

	// FetchObject HEADs an exact object key with no prefixing. Used by the
	// doctor's storage ping, whose configured key may live anywhere in the
	// bucket.
	FetchObject(ctx context.Context, objectKey string) *string
}

// HeadObjectAPI is the slice of the S3 client the fingerprint client needs.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3FingerprintClient fetches object ETags with metadata-only HEAD requests.
type S3FingerprintClient struct {
	api     HeadObjectAPI
	bucket  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewS3FingerprintClient builds a client around an already-configured S3 API.
// An empty bucket or nil api disables every lookup (Fetch returns nil).
func NewS3FingerprintClient(api HeadObjectAPI, bucket string, timeout time.Duration, logger *zap.Logger) *S3FingerprintClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &S3FingerprintClient{api: api, bucket: bucket, timeout: timeout, logger: logger}
}

// Fetch HEADs media/catalog/product/<canonicalKey> and returns the ETag with
// surrounding quotes stripped, or nil on any failure.
func (c *S3FingerprintClient) Fetch(ctx context.Context, canonicalKey string) *string {
	if canonicalKey == "" {
		c.logger.Debug("empty media key after normalization, skipping HEAD")
		return nil
	}
	return c.FetchObject(ctx, CanonicalToObjectKey(canonicalKey))
}

// FetchObject HEADs the exact object key, no prefixing.
func (c *S3FingerprintClient) FetchObject(ctx context.Context, key string) *string {
	if key == "" {
		return nil
	}
	if c.api == nil || c.bucket == "" {
		c.logger.Debug("object store not configured, skipping HEAD")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		c.logger.Debug("HEAD failed",
			zap.String("bucket", c.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	}

	if out.ETag == nil {
		return nil
	}
	etag := NormalizeFingerprint(*out.ETag)
	if etag == "" {
		return nil
	}

	c.logger.Debug("HEAD ok",
		zap.String("bucket", c.bucket),
		zap.String("key", key),
		zap.String("etag", etag),
	)
	return &etag
}

// NoopFingerprintClient is used with the local media driver, where no content
// fingerprints exist and change detection degrades to metadata-only updates.
type NoopFingerprintClient struct{}

func (NoopFingerprintClient) Fetch(context.Context, string) *string       { return nil }
func (NoopFingerprintClient) FetchObject(context.Context, string) *string { return nil }

// NormalizeFingerprint strips the quote characters S3 wraps ETags in.
func NormalizeFingerprint(etag string) string {
	return strings.Trim(etag, `"`)
}

// FingerprintsEqual compares two optional normalized fingerprints.
func FingerprintsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
