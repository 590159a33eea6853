package config

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/overlay"
	"github.com/MeKo-Tech/geomeasure/internal/report"
	"golang.org/x/text/language"
)

const infoLevel = "info"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	st := overlay.DefaultStyle()
	return Config{
		LogLevel: infoLevel,
		Verbose:  false,
		Elevation: ElevationConfig{
			CornerTolerance: geom.DefaultCornerTolerance,
			WarnOnAuto:      false,
		},
		Output: OutputConfig{
			Format:      string(report.FormatText),
			Locale:      "en",
			GroundColor: hexColor(st.Ground.R, st.Ground.G, st.Ground.B),
			HeightColor: hexColor(st.Height.R, st.Height.G, st.Height.B),
			ShadowColor: hexColor(st.Shadow.R, st.Shadow.G, st.Shadow.B),
			LineWidth:   st.Thickness,
		},
		Rectify: RectifyConfig{
			OutputHeight: 1024,
			Workers:      4,
		},
		Batch: BatchConfig{
			Workers:         4,
			Recursive:       false,
			ContinueOnError: false,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDayMB:   1024,
			},
		},
	}
}

func hexColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", infoLevel, "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" {
		if _, err := report.ParseFormat(c.Output.Format); err != nil {
			return err
		}
	}
	if c.Output.Locale != "" {
		if _, err := language.Parse(c.Output.Locale); err != nil {
			return fmt.Errorf("invalid output locale %q: %w", c.Output.Locale, err)
		}
	}
	if _, err := c.OverlayStyle(); err != nil {
		return err
	}

	tol := c.Elevation.CornerTolerance
	if tol < 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
		return fmt.Errorf("invalid corner tolerance: %g (must be a finite non-negative number)", tol)
	}

	if c.Rectify.OutputHeight <= 0 {
		return fmt.Errorf("invalid rectify output height: %d (must be positive)", c.Rectify.OutputHeight)
	}
	if c.Rectify.Workers <= 0 {
		return fmt.Errorf("invalid rectify workers: %d (must be positive)", c.Rectify.Workers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	return nil
}

// Calculator builds the elevation calculator described by the configuration.
func (c *Config) Calculator(logger *slog.Logger) elevation.Calculator {
	return elevation.Calculator{
		CornerTolerance: c.Elevation.CornerTolerance,
		WarnOnAuto:      c.Elevation.WarnOnAuto,
		Logger:          logger,
	}
}

// OverlayStyle returns the overlay palette with the configured colours applied.
// Empty colour settings keep the default.
func (c *Config) OverlayStyle() (overlay.Style, error) {
	st := overlay.DefaultStyle()
	colours := []struct {
		key string
		val string
		dst *color.NRGBA
	}{
		{"ground_color", c.Output.GroundColor, &st.Ground},
		{"height_color", c.Output.HeightColor, &st.Height},
		{"shadow_color", c.Output.ShadowColor, &st.Shadow},
	}
	for _, col := range colours {
		if col.val == "" {
			continue
		}
		parsed, err := overlay.ParseHexColor(col.val)
		if err != nil {
			return overlay.Style{}, fmt.Errorf("invalid output.%s: %w", col.key, err)
		}
		*col.dst = parsed
	}
	if c.Output.LineWidth > 0 {
		st.Thickness = c.Output.LineWidth
	}
	return st, nil
}

// ReportOptions returns the report options for the configured locale.
func (c *Config) ReportOptions() report.Options {
	tag := language.English
	if c.Output.Locale != "" {
		if t, err := language.Parse(c.Output.Locale); err == nil {
			tag = t
		}
	}
	return report.Options{Lang: tag}
}

// SlogLevel maps LogLevel onto a slog level; Verbose forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
