package core

import (
	"context"
	"io"
)

type (
	// Upload is a file received from a client, not yet stored.
	Upload struct {
		Name        string
		ContentType string
		Size        int64
		Content     io.Reader
	}

	// FileStore stores blobs addressed by their path.
	FileStore interface {
		// Save writes the content of r under path, replacing any previous blob.
		Save(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
		Open(ctx context.Context, path string) (io.ReadCloser, error)
		// Delete removes the blob at path; deleting a missing blob is not an error.
		Delete(ctx context.Context, path string) error
		Exists(ctx context.Context, path string) (bool, error)
	}
)
