package driven

import (
	"context"
	"io"
)

// BlobStore stores opaque byte streams by id. Used to spill document
// fields that exceed the document store's per-record size limit.
type BlobStore interface {
	// Upload streams bytes into a new blob and returns its id.
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)

	// Download returns the bytes of a blob by id.
	Download(ctx context.Context, id string) ([]byte, error)

	// Delete removes a blob by id.
	Delete(ctx context.Context, id string) error
}
