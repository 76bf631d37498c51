package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(config.UploadsConfig{Dir: t.TempDir(), PublicPrefix: "/static/uploads/"}, nil)
	require.NoError(t, err)
	return store
}

func TestPutAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url, err := store.Put(ctx, "boat.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	require.Equal(t, "/static/uploads/boat.jpg", url)

	data, err := os.ReadFile(filepath.Join(store.Dir(), "boat.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(store.Dir(), "boat.jpg"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Delete(ctx, url))
}

func TestPutStripsDirectories(t *testing.T) {
	store := newTestStore(t)
	url, err := store.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	require.Equal(t, "/static/uploads/passwd", url)

	_, err = store.Put(context.Background(), "..", strings.NewReader("x"))
	require.Error(t, err)
}

func TestDeleteOutsideStore(t *testing.T) {
	store := newTestStore(t)
	require.ErrorIs(t, store.Delete(context.Background(), "https://cdn.example.com/a.jpg"), ErrOutsideStore)
	require.NoError(t, store.Ping(context.Background()))
}
