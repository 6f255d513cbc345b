package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Media storage driver names, mirroring the remote_storage config values.
const (
	MediaDriverLocal = "local"
	MediaDriverS3    = "aws-s3"
)

// MediaStorage answers whether a media-relative path ("catalog/product/...")
// exists in the configured media tree.
type MediaStorage interface {
	Exists(ctx context.Context, mediaPath string) (bool, error)
}

// LocalMediaStorage checks existence against a media root on local disk.
type LocalMediaStorage struct {
	root string
}

// NewLocalMediaStorage creates a storage backed by the given media root
// directory (the directory that contains catalog/product/...).
func NewLocalMediaStorage(root string) *LocalMediaStorage {
	return &LocalMediaStorage{root: root}
}

func (s *LocalMediaStorage) Exists(_ context.Context, mediaPath string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(mediaPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// S3MediaStorage checks existence with HEAD requests against the media
// bucket. The object key is "media/" + mediaPath, matching how the remote
// media tree is laid out in the bucket.
type S3MediaStorage struct {
	api    HeadObjectAPI
	bucket string
	logger *zap.Logger
}

// NewS3MediaStorage creates a storage backed by the media bucket.
func NewS3MediaStorage(api HeadObjectAPI, bucket string, logger *zap.Logger) *S3MediaStorage {
	return &S3MediaStorage{api: api, bucket: bucket, logger: logger}
}

func (s *S3MediaStorage) Exists(ctx context.Context, mediaPath string) (bool, error) {
	key := "media/" + mediaPath
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "NotFound" || code == "NoSuchKey" {
				return false, nil
			}
		}
		s.logger.Debug("media existence HEAD failed",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return false, err
	}
	return true, nil
}
