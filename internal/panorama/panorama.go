// Package panorama stitches two overlapping images given keypoint matches
// between them.
package panorama

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/disintegration/imaging"
)

// MaxCanvasPixels bounds the stitched output size.
const MaxCanvasPixels = 64 << 20

var (
	// ErrCanvasTooLarge is returned when the warped image would blow up the
	// canvas, typically because the matches describe a near-degenerate view.
	ErrCanvasTooLarge = errors.New("stitched canvas too large")
	// ErrNilImage is returned when either input image is missing.
	ErrNilImage = errors.New("nil image")
)

// Result is a stitched panorama.
type Result struct {
	Image *image.NRGBA
	// Homography maps pixels of the next image into base image pixels.
	Homography homography.Matrix
	// Offset is the position of the base image's origin on the canvas.
	Offset image.Point
	// RMS is the reprojection error of the fitted homography in pixels.
	RMS float64
}

// Stitch warps next into the frame of base. Each match pairs a pixel of next
// (Src) with the same scene point in base (Dst); at least four are needed.
// Base pixels win where the images overlap.
func Stitch(base, next image.Image, matches []homography.Match, workers int) (*Result, error) {
	if base == nil || next == nil {
		return nil, ErrNilImage
	}
	h, err := homography.Fit(matches)
	if err != nil {
		return nil, fmt.Errorf("fit matches: %w", err)
	}
	rms, err := homography.ReprojectionError(h, matches)
	if err != nil {
		return nil, fmt.Errorf("reprojection: %w", err)
	}
	inv, err := homography.Inverse(h)
	if err != nil {
		return nil, err
	}

	nb := next.Bounds()
	corners := []geom.Point{
		{X: float64(nb.Min.X), Y: float64(nb.Min.Y)},
		{X: float64(nb.Max.X - 1), Y: float64(nb.Min.Y)},
		{X: float64(nb.Max.X - 1), Y: float64(nb.Max.Y - 1)},
		{X: float64(nb.Min.X), Y: float64(nb.Max.Y - 1)},
	}
	mapped, err := homography.ApplyAll(h, corners)
	if err != nil {
		return nil, fmt.Errorf("map next image corners: %w", err)
	}

	bb := base.Bounds()
	mapped = append(mapped,
		geom.Point{X: float64(bb.Min.X), Y: float64(bb.Min.Y)},
		geom.Point{X: float64(bb.Max.X - 1), Y: float64(bb.Max.Y - 1)},
	)
	lo, hi, _ := geom.Bounds(mapped)
	// size the canvas in float64 first; huge corners must not overflow int
	fw := math.Ceil(hi.X) - math.Floor(lo.X) + 1
	fh := math.Ceil(hi.Y) - math.Floor(lo.Y) + 1
	if !(fw >= 1 && fh >= 1) || fw*fh > MaxCanvasPixels {
		return nil, fmt.Errorf("%w: %gx%g", ErrCanvasTooLarge, fw, fh)
	}
	minX, minY := int(math.Floor(lo.X)), int(math.Floor(lo.Y))
	w, ht := int(fw), int(fh)

	// canvas -> base (translate) -> next (inverse homography), then into the
	// zero-origin pixel space Warp samples from.
	toBase := homography.Matrix{{1, 0, float64(minX)}, {0, 1, float64(minY)}, {0, 0, 1}}
	toNextPix := homography.Matrix{{1, 0, -float64(nb.Min.X)}, {0, 1, -float64(nb.Min.Y)}, {0, 0, 1}}
	canvasToNext := homography.Mul(toNextPix, homography.Mul(inv, toBase))

	warped := homography.Warp(next, canvasToNext, w, ht, workers)
	if warped == nil {
		return nil, fmt.Errorf("%w: %dx%d", ErrCanvasTooLarge, w, ht)
	}
	offset := image.Pt(bb.Min.X-minX, bb.Min.Y-minY)
	out := imaging.Overlay(warped, base, offset, 1.0)

	slog.Debug("panorama stitched",
		"matches", len(matches), "rms_px", rms, "canvas_w", w, "canvas_h", ht)

	return &Result{Image: out, Homography: h, Offset: offset, RMS: rms}, nil
}
