//nolint:lll
package config

// Config represents the complete configuration for geomeasure.
// It covers every command (elevation, rectify, stitch, serve) and can be
// loaded from configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Elevation ElevationConfig `mapstructure:"elevation" yaml:"elevation" json:"elevation"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Rectify   RectifyConfig   `mapstructure:"rectify" yaml:"rectify" json:"rectify"`

	// Batch processing configuration (elevation over many scene files)
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// ElevationConfig controls the sun-elevation calculation.
type ElevationConfig struct {
	// CornerTolerance is the distance under which consecutive ground polygon
	// vertices are treated as duplicates.
	CornerTolerance float64 `mapstructure:"corner_tolerance" yaml:"corner_tolerance" json:"corner_tolerance"`
	// WarnOnAuto attaches warnings to automatic recomputations as well.
	WarnOnAuto bool `mapstructure:"warn_on_auto" yaml:"warn_on_auto" json:"warn_on_auto"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	Locale     string `mapstructure:"locale" yaml:"locale" json:"locale"`

	GroundColor string `mapstructure:"ground_color" yaml:"ground_color" json:"ground_color"`
	HeightColor string `mapstructure:"height_color" yaml:"height_color" json:"height_color"`
	ShadowColor string `mapstructure:"shadow_color" yaml:"shadow_color" json:"shadow_color"`
	LineWidth   int    `mapstructure:"line_width" yaml:"line_width" json:"line_width"`
}

// RectifyConfig contains quad rectification settings.
type RectifyConfig struct {
	OutputHeight int    `mapstructure:"output_height" yaml:"output_height" json:"output_height"`
	Workers      int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	DebugDir     string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
