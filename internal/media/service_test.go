package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/storage/local"
)

func newTestService(t *testing.T, maxMB int) (Service, *local.Store) {
	t.Helper()
	cfg := config.UploadsConfig{Dir: t.TempDir(), PublicPrefix: "/static/uploads", MaxUploadMB: maxMB}
	store, err := local.New(cfg, nil)
	require.NoError(t, err)
	svc, err := NewService(store, cfg, nil)
	require.NoError(t, err)
	return svc, store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadResizesAndReencodes(t *testing.T) {
	svc, store := newTestService(t, 5)
	ctx := context.Background()

	url, err := svc.Upload(ctx, "wide.png", bytes.NewReader(pngBytes(t, 1600, 400)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/static/uploads/"))
	require.True(t, strings.HasSuffix(url, ".jpg"))

	f, err := os.Open(filepath.Join(store.Dir(), strings.TrimPrefix(url, "/static/uploads/")))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	require.Equal(t, 800, cfg.Width)
	require.Equal(t, 200, cfg.Height)

	require.NoError(t, svc.Remove(ctx, url))
	require.NoError(t, svc.Remove(ctx, "/static/img/placeholder.png"))
}

func TestUploadKeepsSmallImages(t *testing.T) {
	svc, store := newTestService(t, 5)
	url, err := svc.Upload(context.Background(), "small.PNG", bytes.NewReader(pngBytes(t, 100, 50)))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(store.Dir(), strings.TrimPrefix(url, "/static/uploads/")))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Width)
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "notes.txt", strings.NewReader("hello"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "Images must be PNG or JPEG.", pkgerrors.PublicMessage(err))

	_, err = svc.Upload(ctx, "fake.png", strings.NewReader("definitely not an image"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Upload(ctx, "empty.png", bytes.NewReader(nil))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	big := make([]byte, 1024*1024+10)
	copy(big, pngBytes(t, 10, 10))
	_, err = svc.Upload(ctx, "big.png", bytes.NewReader(big))
	require.Equal(t, "Image must be 1 MB or smaller.", pkgerrors.PublicMessage(err))
}
