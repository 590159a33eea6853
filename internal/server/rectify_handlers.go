package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/MeKo-Tech/geomeasure/internal/imageio"
)

// rectifyHandler warps the uploaded image's quad into an upright PNG.
//
// Form fields: image (file), quad ("x,y x,y x,y x,y" or a JSON array of
// {"x","y"} objects), height (optional output height in pixels).
func (s *Server) rectifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, quad, outH, status, err := s.parseRectifyRequest(w, r)
	if err != nil {
		s.writeError(w, r, err, status)
		return
	}

	start := time.Now()
	out, err := homography.RectifyQuad(img, quad, outH, s.rectifyWorkers)
	recordComputation("rectify", err, time.Since(start).Seconds())
	if err != nil {
		s.writeError(w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := imageio.EncodePNG(&buf, out); err != nil {
		s.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) parseRectifyRequest(w http.ResponseWriter, r *http.Request) (image.Image, [4]geom.Point, int, int, error) {
	var quad [4]geom.Point
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, quad, 0, http.StatusRequestEntityTooLarge, fmt.Errorf("upload too large: %w", err)
		}
		return nil, quad, 0, http.StatusBadRequest, fmt.Errorf("failed to parse form data: %w", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, quad, 0, http.StatusBadRequest, errors.New("no image file provided")
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, err := imageio.Decode(file)
	if err != nil {
		return nil, quad, 0, http.StatusBadRequest, err
	}

	quad, err = parseQuadField(r.FormValue("quad"))
	if err != nil {
		return nil, quad, 0, http.StatusBadRequest, err
	}

	outH := 0
	if hs := strings.TrimSpace(r.FormValue("height")); hs != "" {
		outH, err = strconv.Atoi(hs)
		if err != nil || outH <= 0 {
			return nil, quad, 0, http.StatusBadRequest, fmt.Errorf("invalid height %q", hs)
		}
	}
	if outH > s.maxRectifyH {
		return nil, quad, 0, http.StatusBadRequest, fmt.Errorf("height %d exceeds limit %d", outH, s.maxRectifyH)
	}

	// the height derived from the quad is held to the same limit
	_, derivedH, err := homography.RectifiedSize(quad, outH)
	if err != nil {
		return nil, quad, 0, statusFor(err), err
	}
	if derivedH > s.maxRectifyH {
		return nil, quad, 0, http.StatusUnprocessableEntity,
			fmt.Errorf("%w: derived height %d exceeds limit %d", homography.ErrOutputTooLarge, derivedH, s.maxRectifyH)
	}
	return img, quad, derivedH, http.StatusOK, nil
}

// parseQuadField accepts either the CLI point syntax or a JSON point array.
func parseQuadField(v string) ([4]geom.Point, error) {
	var quad [4]geom.Point
	v = strings.TrimSpace(v)
	if v == "" {
		return quad, errors.New("no quad provided")
	}
	if !strings.HasPrefix(v, "[") {
		return geom.ParseQuad(v)
	}
	var pts []geom.Point
	if err := json.Unmarshal([]byte(v), &pts); err != nil {
		return quad, fmt.Errorf("invalid quad: %w", err)
	}
	if len(pts) != 4 {
		return quad, fmt.Errorf("quad needs 4 points, got %d", len(pts))
	}
	copy(quad[:], pts)
	return quad, nil
}
