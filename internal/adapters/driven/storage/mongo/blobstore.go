package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// blobBucketName is the GridFS bucket holding spilled document fields.
const blobBucketName = "spillover"

// BlobStore is a GridFS implementation of driven.BlobStore. Blob ids
// are ObjectID hex strings.
type BlobStore struct {
	bucket *gridfs.Bucket
}

// NewBlobStore creates a blob store over the given store's database.
func NewBlobStore(s *Store) (*BlobStore, error) {
	bucket, err := gridfs.NewBucket(s.Database(), options.GridFSBucket().SetName(blobBucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &BlobStore{bucket: bucket}, nil
}

// Upload streams bytes into a new blob and returns its id.
func (b *BlobStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	id, err := b.bucket.UploadFromStream(filename, r)
	if err != nil {
		return "", fmt.Errorf("upload blob %s: %w", filename, err)
	}
	return id.Hex(), nil
}

// Download returns the bytes of a blob by id.
func (b *BlobStore) Download(ctx context.Context, id string) ([]byte, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("blob id %s: %w", id, domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if _, err := b.bucket.DownloadToStream(oid, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", id, err)
	}
	return buf.Bytes(), nil
}

// Delete removes a blob by id.
func (b *BlobStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("blob id %s: %w", id, domain.ErrInvalidInput)
	}
	if err := b.bucket.DeleteContext(ctx, oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}
