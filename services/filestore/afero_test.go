package filestore

import (
	"context"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
)

func TestAferoStore(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	stores := map[string]core.FileStore{
		"memory": NewMemoryStore(),
		"local":  local,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			path := "task_files/42/notes.txt"

			ok, err := store.Exists(ctx, path)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Save(ctx, path, strings.NewReader("hello"), 5, "text/plain"))
			ok, err = store.Exists(ctx, path)
			require.NoError(t, err)
			assert.True(t, ok)

			rc, err := store.Open(ctx, path)
			require.NoError(t, err)
			content, err := ioutil.ReadAll(rc)
			require.NoError(t, err)
			assert.NoError(t, rc.Close())
			assert.Equal(t, "hello", string(content))

			require.NoError(t, store.Delete(ctx, path))
			assert.NoError(t, store.Delete(ctx, path), "deleting a missing blob is not an error")

			_, err = store.Open(ctx, path)
			assert.True(t, core.IsNotFound(err))
		})
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), core.StorageConfig{Driver: "ftp"})
	assert.EqualError(t, err, `unknown storage driver "ftp"`)
}
