// Package overlay renders elevation scenes as annotated images.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/imageio"
	"github.com/MeKo-Tech/geomeasure/internal/scene"
	"github.com/disintegration/imaging"
)

// Margin is the blank border around a scene rendered without a base image.
const Margin = 20

// MaxCanvasPixels bounds the blank canvas Render allocates for a scene.
const MaxCanvasPixels = 64 << 20

// ErrCanvasTooLarge is returned when a scene's bounds exceed MaxCanvasPixels.
var ErrCanvasTooLarge = errors.New("overlay canvas too large")

// Style holds the colours used for each role.
type Style struct {
	Ground     color.NRGBA
	Height     color.NRGBA
	Shadow     color.NRGBA
	Other      color.NRGBA
	Background color.NRGBA
	Thickness  int
}

// DefaultStyle returns the standard palette.
func DefaultStyle() Style {
	return Style{
		Ground:     color.NRGBA{R: 0, G: 160, B: 255, A: 255},
		Height:     color.NRGBA{R: 255, G: 64, B: 0, A: 255},
		Shadow:     color.NRGBA{R: 255, G: 200, B: 0, A: 255},
		Other:      color.NRGBA{R: 128, G: 128, B: 128, A: 255},
		Background: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Thickness:  2,
	}
}

// ParseHexColor parses #rgb, #rrggbb or #rrggbbaa (the '#' is optional).
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Render draws every shape of sess. With a nil base the canvas covers the
// scene bounds plus Margin, in the scene's own pixel coordinates, and fails
// with ErrCanvasTooLarge beyond MaxCanvasPixels.
func Render(base image.Image, sess *elevation.Session, st Style) (*image.NRGBA, error) {
	var canvas *image.NRGBA
	if base != nil {
		canvas = imaging.Clone(base)
		// Keep absolute coordinates of offset images.
		canvas.Rect = canvas.Rect.Add(base.Bounds().Min)
	} else {
		r := image.Rect(0, 0, 2*Margin, 2*Margin)
		if b, ok := scene.Bounds(sess); ok {
			var err error
			if r, err = canvasRect(b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()); err != nil {
				return nil, err
			}
		}
		canvas = image.NewNRGBA(r)
		fill(canvas, st.Background)
	}

	roles := make(map[elevation.ShapeID]elevation.Role)
	for _, a := range sess.Assignments() {
		// Height wins over shadow when one arrow fills both.
		if _, seen := roles[a.Shape]; !seen {
			roles[a.Shape] = a.Role
		}
	}
	colour := func(id elevation.ShapeID) color.NRGBA {
		switch roles[id] {
		case elevation.RoleHeight:
			return st.Height
		case elevation.RoleShadow:
			return st.Shadow
		case elevation.RoleGround:
			return st.Ground
		}
		return st.Other
	}

	for id, p := range sess.Polygons() {
		DrawPolygon(canvas, p.Points, colour(id), st.Thickness)
	}
	for id, a := range sess.Arrows() {
		DrawArrow(canvas, a.Start, a.End, colour(id), st.Thickness)
	}
	return canvas, nil
}

// canvasRect pads the scene bounds by Margin, checking the size in float64
// before any int conversion.
func canvasRect(minX, minY, maxX, maxY float64) (image.Rectangle, error) {
	x0, y0 := math.Floor(minX)-Margin, math.Floor(minY)-Margin
	x1, y1 := math.Ceil(maxX)+Margin, math.Ceil(maxY)+Margin
	w, h := x1-x0, y1-y0
	if math.IsNaN(w) || math.IsNaN(h) || w*h > MaxCanvasPixels ||
		math.Abs(x0) > math.MaxInt32 || math.Abs(y0) > math.MaxInt32 {
		return image.Rectangle{}, fmt.Errorf("%w: scene spans %gx%g pixels", ErrCanvasTooLarge, w, h)
	}
	return image.Rect(int(x0), int(y0), int(x1), int(y1)), nil
}

// RenderQuad outlines quad on a copy of src.
func RenderQuad(src image.Image, quad [4]geom.Point, col color.NRGBA, thickness int) *image.NRGBA {
	canvas := imaging.Clone(src)
	canvas.Rect = canvas.Rect.Add(src.Bounds().Min)
	DrawPolygon(canvas, quad[:], col, thickness)
	return canvas
}

// WritePNG saves img as dir/name.png and returns the path.
func WritePNG(dir, name string, img image.Image) (string, error) {
	path := filepath.Join(dir, name+".png")
	if err := imageio.Save(img, path); err != nil {
		return "", err
	}
	return path, nil
}

func fill(img *image.NRGBA, c color.NRGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
}
