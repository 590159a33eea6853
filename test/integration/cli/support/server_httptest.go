package support

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/server"
)

// startTestHTTPServer serves the real handlers on an httptest listener.
// Rate limiting is enabled only when perMinute is positive.
func (testCtx *TestContext) startTestHTTPServer(perMinute int) error {
	if err := testCtx.StopServer(); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    cfg.Server.MaxUploadMB,
		TimeoutSec:     cfg.Server.TimeoutSec,
		Calculator:     cfg.Calculator(logger),
		RectifyWorkers: 2,
		RateLimit: server.RateLimitConfig{
			Enabled:           perMinute > 0,
			RequestsPerMinute: perMinute,
		},
		Logger: logger,
	})
	testCtx.HTTPTestServer = httptest.NewServer(srv.Handler())
	return nil
}

// StopServer closes the session socket and the test server, if running.
func (testCtx *TestContext) StopServer() error {
	if testCtx.SessionConn != nil {
		_ = testCtx.SessionConn.Close()
		testCtx.SessionConn = nil
	}
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
	return nil
}

// GetServerURL returns the base URL of the running test server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer == nil {
		return ""
	}
	return testCtx.HTTPTestServer.URL
}

func (testCtx *TestContext) sessionURL() string {
	return "ws" + strings.TrimPrefix(testCtx.GetServerURL(), "http") + "/ws/session"
}
