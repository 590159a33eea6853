package server

import (
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
)

// Server holds the HTTP server state and dependencies. The measurement core
// is stateless; only WebSocket connections carry a Session.
type Server struct {
	calc           elevation.Calculator
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	rectifyWorkers int
	maxRectifyH    int
	rateLimiter    *RateLimiter
	logger         *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	Calculator elevation.Calculator

	// RectifyWorkers bounds the goroutines used per rectify request.
	RectifyWorkers int
	// MaxRectifyHeight caps the requested output height; 0 means 4096.
	MaxRectifyHeight int

	RateLimit RateLimitConfig
	Logger    *slog.Logger
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

const defaultMaxRectifyHeight = 4096

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// ErrorResponse is the body of every non-2xx JSON reply. Kind is a stable
// machine-readable classification of the failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

type HomographyRequest struct {
	Src []geom.Point `json:"src"`
	// Dst defaults to the unit square.
	Dst []geom.Point `json:"dst,omitempty"`
}

type HomographyResponse struct {
	Matrix homography.Matrix `json:"matrix"`
}

type ApplyRequest struct {
	Matrix homography.Matrix `json:"matrix"`
	Points []geom.Point      `json:"points"`
}

// ApplyResponse holds one entry per input point; points that cannot be
// mapped are null.
type ApplyResponse struct {
	Points []*geom.Point `json:"points"`
}

type ElevationRequest struct {
	elevation.Input
	Explicit bool `json:"explicit,omitempty"`
}

// NewServer creates a new server instance.
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxH := config.MaxRectifyHeight
	if maxH <= 0 {
		maxH = defaultMaxRectifyHeight
	}
	s := &Server{
		calc:           config.Calculator,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		rectifyWorkers: config.RectifyWorkers,
		maxRectifyH:    maxH,
		logger:         logger,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay,
			config.RateLimit.MaxDataPerDay,
		)
	}
	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler, false))
	mux.HandleFunc("/version", s.wrap(s.versionHandler, false))
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/v1/homography", s.wrap(s.homographyHandler, true))
	mux.HandleFunc("/v1/homography/apply", s.wrap(s.applyHandler, true))
	mux.HandleFunc("/v1/elevation", s.wrap(s.elevationHandler, true))
	mux.HandleFunc("/v1/rectify", s.wrap(s.rectifyHandler, true))
	mux.HandleFunc("/ws/session", s.wrap(s.sessionWebSocketHandler, true))
}

// Handler returns a mux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// wrap applies the middleware chain: request id, CORS + metrics, and rate
// limiting for API routes.
func (s *Server) wrap(h http.HandlerFunc, limited bool) http.HandlerFunc {
	if limited {
		h = s.rateLimitMiddleware(h)
	}
	return requestIDMiddleware(s.corsMiddleware(h))
}
