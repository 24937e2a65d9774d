package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
)

type b2Store struct {
	bucket *b2.Bucket
}

var _ core.FileStore = (*b2Store)(nil)

func NewB2Store(ctx context.Context, conf core.StorageConfig) (core.FileStore, error) {
	client, err := b2.NewClient(ctx, conf.B2AccountID, conf.B2AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Store{bucket: bucket}, nil
}

func (s *b2Store) Save(ctx context.Context, path string, r io.Reader, _ int64, contentType string) error {
	w := s.bucket.Object(cleanKey(path)).NewWriter(ctx)
	if contentType != "" {
		w = w.WithAttrs(&b2.Attrs{ContentType: contentType})
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(w.Close(), "closing %s", path)
}

func (s *b2Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	obj := s.bucket.Object(cleanKey(path))
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.NewNotFoundError("file")
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Store) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(cleanKey(path)).Delete(ctx)
	if err != nil && !b2.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

func (s *b2Store) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := s.bucket.Object(cleanKey(path)).Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "checking %s", path)
	}
	return true, nil
}
