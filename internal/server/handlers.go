package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/MeKo-Tech/geomeasure/internal/imageio"
	"github.com/MeKo-Tech/geomeasure/internal/linsolve"
	"github.com/MeKo-Tech/geomeasure/internal/version"
)

// maxJSONBody bounds JSON request bodies; images go through multipart.
const maxJSONBody = 1 << 20

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// versionHandler returns build metadata.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, commit, date := version.Info()
	s.writeJSON(w, http.StatusOK, VersionResponse{Version: v, GitCommit: commit, BuildDate: date})
}

// homographyHandler solves the 4-point homography src -> dst.
func (s *Server) homographyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req HomographyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	dst := req.Dst
	if len(dst) == 0 {
		dst = homography.UnitSquare[:]
	}

	start := time.Now()
	m, err := homography.Compute(req.Src, dst)
	recordComputation("homography", err, time.Since(start).Seconds())
	if err != nil {
		s.writeError(w, r, err, statusFor(err))
		return
	}
	s.writeJSON(w, http.StatusOK, HomographyResponse{Matrix: m})
}

// applyHandler maps points through a matrix. Points that fail to map come
// back as null so the caller keeps index alignment.
func (s *Server) applyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ApplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if !req.Matrix.Finite() {
		s.writeError(w, r, fmt.Errorf("matrix: %w", homography.ErrNonFinite), http.StatusUnprocessableEntity)
		return
	}

	start := time.Now()
	out := make([]*geom.Point, len(req.Points))
	for i, p := range req.Points {
		q, err := homography.Apply(req.Matrix, p)
		if err != nil {
			continue
		}
		out[i] = &q
	}
	recordComputation("apply", nil, time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, ApplyResponse{Points: out})
}

// elevationHandler runs one stateless elevation computation.
func (s *Server) elevationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ElevationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	start := time.Now()
	out := s.calc.Compute(req.Input, req.Explicit)
	recordComputation("elevation", nil, time.Since(start).Seconds())
	if out.Result != nil {
		elevationAngle.Observe(out.Result.AngleDegrees)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// decodeJSON decodes a bounded JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorKind classifies an error for ErrorResponse.Kind.
func errorKind(err error) string {
	var shapeErr *linsolve.ShapeError
	var ioErr *imageio.Error
	switch {
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.Is(err, linsolve.ErrSingular):
		return "singular"
	case errors.Is(err, homography.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, homography.ErrNonFinite):
		return "non_finite"
	case errors.Is(err, homography.ErrDegenerateMapping):
		return "degenerate_mapping"
	case errors.Is(err, homography.ErrNotInvertible):
		return "not_invertible"
	case errors.Is(err, geom.ErrInsufficientCorners):
		return "insufficient_corners"
	case errors.Is(err, homography.ErrOutputTooLarge):
		return "output_too_large"
	case errors.Is(err, elevation.ErrUnknownRole),
		errors.Is(err, elevation.ErrUnknownShape),
		errors.Is(err, elevation.ErrRoleMismatch),
		errors.Is(err, elevation.ErrInvalidShape):
		return "session"
	case errors.As(err, &ioErr):
		return "image"
	default:
		return "invalid_request"
	}
}

// statusFor maps computation errors to HTTP status codes: malformed systems
// are client bugs (400), well-formed but unsolvable input is 422.
func statusFor(err error) int {
	switch errorKind(err) {
	case "shape", "invalid_request", "image":
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// errUnencodable marks results that cannot be represented in JSON, such as
// diagnostics that overflowed to infinity.
var errUnencodable = errors.New("result not representable as JSON")

// writeJSON encodes v before committing the status, so an encoding failure
// becomes a 422 error response instead of an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
		buf.Reset()
		status = http.StatusUnprocessableEntity
		_ = json.NewEncoder(&buf).Encode(ErrorResponse{
			Error: fmt.Sprintf("%v: %v", errUnencodable, err),
			Kind:  "non_finite",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	s.logRequestError(r, "request failed", err)
	s.writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Kind:      errorKind(err),
		RequestID: requestID(r.Context()),
	})
}
