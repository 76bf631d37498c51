// Package local stores uploaded files on the local filesystem and serves them under a
// public URL prefix.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ErrOutsideStore is returned when a URL does not belong to this store.
var ErrOutsideStore = errors.New("url is not managed by the upload store")

// Pinger exposes the readiness check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store writes objects below a root directory.
type Store struct {
	dir    string
	prefix string
	logg   *logger.Logger
}

// New creates the upload directory when missing.
func New(cfg config.UploadsConfig, logg *logger.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("uploads dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	prefix := strings.TrimRight(cfg.PublicPrefix, "/")
	if prefix == "" {
		prefix = "/static/uploads"
	}
	return &Store{dir: cfg.Dir, prefix: prefix, logg: logg}, nil
}

// Dir is the root directory, used by the static file server.
func (s *Store) Dir() string {
	return s.dir
}

// Prefix is the public URL prefix objects are served under.
func (s *Store) Prefix() string {
	return s.prefix
}

// Put writes r to name and returns the public URL.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, clean)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("move upload: %w", err)
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithField(ctx, "object", clean), "upload stored")
	}
	return s.prefix + "/" + clean, nil
}

// Delete removes the object behind a public URL. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.prefix+"/") {
		return ErrOutsideStore
	}
	clean, err := cleanName(strings.TrimPrefix(url, s.prefix+"/"))
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// Ping verifies the upload directory exists.
func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func cleanName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return base, nil
}
