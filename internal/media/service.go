package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage/local"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	defaultMaxWidth = 800
	defaultQuality  = 80
	sniffLen        = 512
)

type objectStore interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// Service validates, normalizes and stores listing images.
type Service interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

type service struct {
	store    objectStore
	maxBytes int64
	maxWidth uint
	quality  int
	logg     *logger.Logger
}

// NewService builds the image pipeline over an object store.
func NewService(store objectStore, cfg config.UploadsConfig, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	width := cfg.ImageMaxWidth
	if width <= 0 {
		width = defaultMaxWidth
	}
	quality := cfg.ImageQuality
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}
	return &service{
		store:    store,
		maxBytes: int64(maxMB) * 1024 * 1024,
		maxWidth: uint(width),
		quality:  quality,
		logg:     logg,
	}, nil
}

// Upload accepts a PNG or JPEG, scales it down to the max width and stores it as a JPEG
// under a random name. It returns the public URL.
func (s *service) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	if body == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Image file is required.")
	}
	raw, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Could not read the uploaded image.")
	}
	if len(raw) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Image file is required.")
	}
	if int64(len(raw)) > s.maxBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Image must be %d MB or smaller.", s.maxBytes/(1024*1024)))
	}

	head := raw
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if _, err := sniffImageType(filename, head); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Images must be "+allowedDescription()+".")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Image could not be decoded.")
	}
	if uint(img.Bounds().Dx()) > s.maxWidth {
		img = resize.Resize(s.maxWidth, 0, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode image")
	}

	url, err := s.store.Put(ctx, uuid.NewString()+".jpg", &out)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store image")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"url": url, "bytes": out.Len()}), "image uploaded")
	}
	return url, nil
}

// Remove deletes an uploaded image. URLs outside the upload store, such as bundled static
// images, are left alone.
func (s *service) Remove(ctx context.Context, url string) error {
	if err := s.store.Delete(ctx, url); err != nil {
		if errors.Is(err, local.ErrOutsideStore) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete image")
	}
	return nil
}
