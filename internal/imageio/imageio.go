// Package imageio loads and saves raster images for rectification, stitching
// and overlays.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedExtensions lists the file extensions Load accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".gif", ".webp"}

// Error records the operation that failed.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("image %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// IsSupported reports whether path has a supported extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Metadata describes a loaded file.
type Metadata struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Load opens and decodes an image, applying any EXIF orientation.
func Load(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &Error{Op: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, Metadata{}, &Error{Op: "load", Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, Metadata{}, &Error{Op: "load", Path: path, Err: err}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, Metadata{}, &Error{Op: "decode", Path: path, Err: err}
	}
	b := img.Bounds()
	return img, Metadata{Path: path, SizeBytes: fi.Size(), Width: b.Dx(), Height: b.Dy()}, nil
}

// Decode reads an image from r, e.g. an HTTP upload.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{Op: "decode", Err: err}
	}
	return img, nil
}

// Save encodes img to path, choosing the format from the extension and
// creating the parent directory.
func Save(img image.Image, path string) error {
	if img == nil {
		return &Error{Op: "save", Path: path, Err: errors.New("nil image")}
	}
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return &Error{Op: "save", Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &Error{Op: "save", Path: path, Err: err}
	}
	if err := imaging.Save(img, path); err != nil {
		return &Error{Op: "save", Path: path, Err: err}
	}
	return nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return &Error{Op: "encode", Err: err}
	}
	return nil
}

// Fit scales img down so that it fits in maxW x maxH, keeping the aspect
// ratio. Smaller images are returned unchanged. The returned factor maps
// original pixel coordinates to the scaled image.
func Fit(img image.Image, maxW, maxH int) (image.Image, float64) {
	b := img.Bounds()
	if maxW <= 0 || maxH <= 0 || (b.Dx() <= maxW && b.Dy() <= maxH) {
		return img, 1
	}
	out := imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	return out, float64(out.Bounds().Dx()) / float64(b.Dx())
}
