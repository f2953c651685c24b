package storage

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// BucketStorage implements TileStore on a gocloud blob bucket.
// Objects become visible only when their writer closes, so puts are atomic.
type BucketStorage struct {
	bucket *blob.Bucket
}

// OpenBucketStorage opens a bucket URL such as file:///data/tiles, mem:// or s3://bucket.
// Cloud drivers must be linked in by the binary.
func OpenBucketStorage(ctx context.Context, bucketURL string) (*BucketStorage, error) {
	if bucketURL == "" {
		return nil, fmt.Errorf("bucket url is required for bucket storage")
	}
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketURL, err)
	}
	return NewBucketStorage(b), nil
}

// NewBucketStorage wraps an open bucket
func NewBucketStorage(b *blob.Bucket) *BucketStorage {
	return &BucketStorage{bucket: b}
}

// Stat returns the object size
func (s *BucketStorage) Stat(ctx context.Context, key string) (int64, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, ErrNotExist
		}
		return 0, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return attrs.Size, nil
}

// Put uploads content as one object
func (s *BucketStorage) Put(ctx context.Context, key string, content []byte) error {
	opts := &blob.WriterOptions{ContentType: "image/png"}
	if err := s.bucket.WriteAll(ctx, key, content, opts); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

// Get downloads an object
func (s *BucketStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Delete removes an object
func (s *BucketStorage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Close closes the bucket
func (s *BucketStorage) Close() error {
	return s.bucket.Close()
}
