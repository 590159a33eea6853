package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/version"
	"github.com/spf13/cobra"
)

// rootOptions is the state shared by one command tree: the config file flag
// and the configuration loaded before any subcommand runs.
type rootOptions struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree. Every call returns independent
// flag state, so tests can execute commands repeatedly in one process.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "geomeasure",
		Short: "Perspective correction and sun elevation measurement",
		Long: `geomeasure estimates planar homographies from point correspondences and
uses them to measure the sun's elevation angle from shadows in photographs.

This tool provides:
- Homography computation and point mapping
- Sun elevation from height and shadow arrows, optionally corrected by a ground quad
- Perspective rectification of image regions
- Panorama stitching from keypoint matches
- An HTTP and WebSocket server for interactive frontends

Examples:
  geomeasure homography --src "10,10 90,12 95,80 5,85"
  geomeasure elevation scenes/ --recursive --format json
  geomeasure serve --port 8080`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _ := cmd.Flags().GetBool("version")
			if v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/geomeasure, /etc/geomeasure)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := opts.initConfig(cmd, true); err != nil {
			return err
		}
		setupLogging(cmd, opts.cfg)
		return nil
	}

	rootCmd.AddCommand(
		newHomographyCmd(),
		newApplyCmd(),
		newElevationCmd(opts),
		newRectifyCmd(opts),
		newStitchCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure. This is called by
// main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig loads configuration from file, environment and defaults, with
// the global flags bound on top.
func (o *rootOptions) initConfig(cmd *cobra.Command, validate bool) error {
	o.loader = config.NewIsolatedLoader()
	v := o.loader.GetViper()
	pf := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", pf.Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", pf.Lookup("log-level")); err != nil {
		return err
	}

	var err error
	if validate {
		o.cfg, err = o.loader.LoadWithFile(o.cfgFile)
	} else {
		o.cfg, err = o.loader.LoadWithFileWithoutValidation(o.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs the JSON slog handler. Logs go to stderr so that
// reports on stdout stay machine-readable.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
