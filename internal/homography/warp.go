package homography

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/disintegration/imaging"
)

// Warp renders a dstW x dstH image whose pixel (x, y) is sampled from src at
// Apply(dstToSrc, (x, y)). Pixels that map outside src or onto the vanishing
// line stay transparent. Rows are distributed over workers goroutines
// (0 = runtime.NumCPU()).
func Warp(src image.Image, dstToSrc Matrix, dstW, dstH, workers int) *image.NRGBA {
	if src == nil || dstW <= 0 || dstH <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > dstH {
		workers = dstH
	}

	// Sample from a zero-origin NRGBA copy so pixel lookups are direct.
	s := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))

	rows := make(chan int, dstH)
	for y := range dstH {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				warpRow(out, s, dstToSrc, y)
			}
		}()
	}
	wg.Wait()
	return out
}

func warpRow(out, src *image.NRGBA, h Matrix, y int) {
	w := out.Bounds().Dx()
	for x := range w {
		p, err := Apply(h, geom.Point{X: float64(x), Y: float64(y)})
		if err != nil {
			continue
		}
		c, ok := bilinearSample(src, p.X, p.Y)
		if !ok {
			continue
		}
		i := out.PixOffset(x, y)
		out.Pix[i+0] = c.R
		out.Pix[i+1] = c.G
		out.Pix[i+2] = c.B
		out.Pix[i+3] = c.A
	}
}

// bilinearSample interpolates src at (x, y). ok is false more than half a
// pixel outside the image.
func bilinearSample(src *image.NRGBA, x, y float64) (color.NRGBA, bool) {
	b := src.Bounds()
	maxX, maxY := float64(b.Dx()-1), float64(b.Dy()-1)
	if x < -0.5 || y < -0.5 || x > maxX+0.5 || y > maxY+0.5 {
		return color.NRGBA{}, false
	}
	x = math.Min(math.Max(x, 0), maxX)
	y = math.Min(math.Max(y, 0), maxY)
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	c00 := src.NRGBAAt(x0, y0)
	c10 := src.NRGBAAt(x1, y0)
	c01 := src.NRGBAAt(x0, y1)
	c11 := src.NRGBAAt(x1, y1)
	mix := func(a, b, c, d uint8) uint8 {
		top := lerp(float64(a), float64(b), fx)
		bot := lerp(float64(c), float64(d), fx)
		return uint8(math.Round(lerp(top, bot, fy)))
	}
	return color.NRGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}, true
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// MaxOutputPixels bounds the area of images produced by RectifyQuad.
const MaxOutputPixels = 64 << 20

// ErrOutputTooLarge is returned when a rectified image would exceed
// MaxOutputPixels.
var ErrOutputTooLarge = errors.New("rectified image too large")

// RectifiedSize returns the output size RectifyQuad uses for quad. outH <= 0
// derives the height from the quad's average side length. Sizes are checked
// in float64 so huge quads fail with ErrOutputTooLarge instead of overflowing.
func RectifiedSize(quad [4]geom.Point, outH int) (int, int, error) {
	if !geom.AllFinite(quad[:]) {
		return 0, 0, ErrNonFinite
	}
	avgW := (geom.Dist(quad[0], quad[1]) + geom.Dist(quad[3], quad[2])) / 2
	avgH := (geom.Dist(quad[0], quad[3]) + geom.Dist(quad[1], quad[2])) / 2
	if math.IsInf(avgW, 0) || math.IsInf(avgH, 0) {
		return 0, 0, fmt.Errorf("%w: quad extent overflows", ErrOutputTooLarge)
	}
	if avgW <= 1 || avgH <= 1 {
		return 0, 0, ErrDegenerateMapping
	}

	h := float64(outH)
	if outH <= 0 {
		h = math.Round(avgH)
	}
	w := math.Max(math.Round(avgW/avgH*h), 1)
	if w*h > MaxOutputPixels {
		return 0, 0, fmt.Errorf("%w: %.0fx%.0f exceeds %d pixels", ErrOutputTooLarge, w, h, MaxOutputPixels)
	}
	return int(w), int(h), nil
}

// RectifyQuad warps the quadrilateral quad of src (corners in drawn order:
// top-left, top-right, bottom-right, bottom-left) into an upright rectangle
// of height outH. The width follows the average aspect ratio of the quad's
// opposite edges.
func RectifyQuad(src image.Image, quad [4]geom.Point, outH, workers int) (*image.NRGBA, error) {
	if src == nil {
		return nil, errors.New("nil image")
	}
	outW, outH, err := RectifiedSize(quad, outH)
	if err != nil {
		return nil, err
	}

	rect := []geom.Point{
		{X: 0, Y: 0},
		{X: float64(outW - 1), Y: 0},
		{X: float64(outW - 1), Y: float64(outH - 1)},
		{X: 0, Y: float64(outH - 1)},
	}
	h, err := Compute(rect, quad[:])
	if err != nil {
		return nil, err
	}

	// Compute works in zero-origin pixel space; shift for offset images.
	if o := src.Bounds().Min; o != (image.Point{}) {
		shift := Matrix{{1, 0, -float64(o.X)}, {0, 1, -float64(o.Y)}, {0, 0, 1}}
		h = Mul(shift, h)
	}
	return Warp(src, h, outW, outH, workers), nil
}
