package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/edusys/core"
)

type aferoStore struct {
	fs afero.Fs
}

var _ core.FileStore = (*aferoStore)(nil)

// NewLocalStore keeps blobs under root, which is created when missing.
func NewLocalStore(root string) (core.FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating storage root %s", root)
	}
	return &aferoStore{fs: afero.NewBasePathFs(afero.NewOsFs(), root)}, nil
}

// NewMemoryStore keeps blobs in memory; they are lost with the process.
func NewMemoryStore() core.FileStore {
	return &aferoStore{fs: afero.NewMemMapFs()}
}

func (s *aferoStore) Save(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	key := filepath.FromSlash(cleanKey(path))
	if err := s.fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory of %s", path)
	}
	return errors.Wrapf(afero.WriteReader(s.fs, key, r), "writing %s", path)
}

func (s *aferoStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := s.fs.Open(filepath.FromSlash(cleanKey(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("file")
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return f, nil
}

func (s *aferoStore) Delete(_ context.Context, path string) error {
	err := s.fs.Remove(filepath.FromSlash(cleanKey(path)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

func (s *aferoStore) Exists(_ context.Context, path string) (bool, error) {
	ok, err := afero.Exists(s.fs, filepath.FromSlash(cleanKey(path)))
	return ok, errors.Wrapf(err, "checking %s", path)
}
