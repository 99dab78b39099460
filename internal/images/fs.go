package images

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bookboard-app/bookboard/internal/model"
)

// FSStore keeps images on the local filesystem. The returned references are
// local, so they resolve only on this machine; use [S3Store] when posts are
// shared across devices.
type FSStore struct {
	dir string
}

// NewFSStore creates an FSStore rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Upload writes the image under a date-bucketed path and returns a local
// reference holding the absolute file path.
func (s *FSStore) Upload(_ context.Context, ext string, r io.Reader) (model.ImageRef, error) {
	key := storageKey(ext)
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return model.ImageRef{}, fmt.Errorf("creating image directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return model.ImageRef{}, fmt.Errorf("creating image file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, maxImageSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxImageSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		return model.ImageRef{}, fmt.Errorf("writing image: %w", err)
	}
	return model.LocalImage(dst), nil
}

// Delete removes the referenced file. Only paths under the store's own
// directory are touched; foreign or remote references are ignored.
func (s *FSStore) Delete(_ context.Context, ref model.ImageRef) error {
	if ref.Kind != model.ImageLocalPath {
		return nil
	}
	rel, err := filepath.Rel(s.dir, ref.Value)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	if err := os.Remove(ref.Value); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}
