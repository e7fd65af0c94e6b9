// Package images - Image definition for processing utilities.
package images

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// FormatFromPath infers the format from a file extension. Anything that is not
// a JPEG extension is treated as PNG.
func FormatFromPath(path string) ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// Load decodes the image stored at path, honouring EXIF orientation.
//
// Arguments:
//   - path: The image file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: If the file is missing or cannot be decoded.
func Load(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "image %s", path)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}
	return img, nil
}

// Save encodes img to path, choosing the encoder from the extension.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	return errors.Wrapf(imaging.Save(img, path), "save image %s", path)
}

// Crop returns the r region of img as a new image anchored at (0, 0).
//
// r is relative to img's bounds origin. Parts of r outside img are clipped, so
// callers that need an exact size must keep r inside the image.
func Crop(img image.Image, r Rect) image.Image {
	origin := img.Bounds().Min
	return imaging.Crop(img, r.Rectangle().Add(origin))
}
