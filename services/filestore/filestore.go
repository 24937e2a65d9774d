// Package filestore implements core.FileStore on the local disk, in memory, on MinIO and on Backblaze B2.
package filestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/edusys/core"
)

// New returns the store selected by conf.Driver.
func New(ctx context.Context, conf core.StorageConfig) (core.FileStore, error) {
	switch strings.ToLower(conf.Driver) {
	case "", "local":
		return NewLocalStore(conf.LocalRoot)
	case "memory":
		return NewMemoryStore(), nil
	case "minio":
		return NewMinioStore(ctx, conf)
	case "b2":
		return NewB2Store(ctx, conf)
	}
	return nil, fmt.Errorf("unknown storage driver %q", conf.Driver)
}

// cleanKey makes path relative, with forward slashes only.
func cleanKey(path string) string {
	return strings.TrimLeft(strings.ReplaceAll(path, "\\", "/"), "/")
}
