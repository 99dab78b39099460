// Package images stores post and profile pictures and hands back image
// references for the records that carry them.
package images

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/bookboard-app/bookboard/internal/model"
)

// maxImageSize caps uploads at 10 MiB.
const maxImageSize = 10 << 20

// ErrTooLarge is returned for uploads exceeding the size cap.
var ErrTooLarge = fmt.Errorf("image exceeds %d bytes", maxImageSize)

// Store persists uploaded images and returns a reference to embed in the
// owning record.
type Store interface {
	// Upload stores the image content and returns its reference. ext is the
	// original filename extension including the dot, e.g. ".jpg".
	Upload(ctx context.Context, ext string, r io.Reader) (model.ImageRef, error)

	// Delete removes a previously uploaded image. Deleting a reference this
	// store did not produce, or one already gone, is not an error.
	Delete(ctx context.Context, ref model.ImageRef) error
}

// storageKey builds a date-bucketed object key so listings stay navigable.
func storageKey(ext string) string {
	d := time.Now()
	return path.Join("images",
		fmt.Sprintf("%d/%02d/%02d", d.Year(), d.Month(), d.Day()),
		uuid.NewString()+ext,
	)
}
