package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/geomeasure/internal/batch"
	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/report"
	"github.com/spf13/cobra"
)

func newElevationCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "elevation [scene files or directories...]",
		Short: "Compute sun elevation angles for scene files",
		Long: `Compute the sun elevation angle for one or more GeoJSON scene files.

A scene holds the height arrow, the shadow arrow and optionally a ground
polygon whose four corners correct the shadow for perspective. Directories
are searched for *.geojson and *.json files; scenes are processed in
parallel and reported in input order.

Examples:
  geomeasure elevation scene.geojson
  geomeasure elevation scenes/ --recursive --format json --output results.json
  geomeasure elevation scene.geojson --height-override 1.8 --overlay-dir overlays/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runElevation(cmd, args, opts.cfg)
		},
	}

	f := cmd.Flags()
	f.Float64("height-override", 0, "actual object height; positive values replace each scene's own override")
	f.StringP("format", "f", "text", "output format: text, json, csv or yaml")
	f.StringP("output", "o", "", "output file (default stdout)")
	f.String("overlay-dir", "", "directory for annotated overlay PNGs")
	f.IntP("workers", "w", 4, "number of parallel workers (0 = number of CPUs)")
	f.BoolP("recursive", "r", false, "search directories recursively")
	f.Bool("continue-on-error", false, "report failing scenes instead of aborting")
	f.StringSlice("include", nil, "glob patterns a file name must match")
	f.StringSlice("exclude", nil, "glob patterns to skip")
	f.Bool("quiet", false, "omit warnings from the outcomes")
	f.Bool("stats", false, "print processing statistics to stderr")
	f.Bool("progress", false, "log progress while processing")
	return cmd
}

// configToBatchConfig maps the loaded configuration to batch.Config, with
// explicitly set flags taking precedence.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	style, err := cfg.OverlayStyle()
	if err != nil {
		return nil, err
	}

	bc := &batch.Config{
		Calculator:      cfg.Calculator(slog.Default()),
		Explicit:        true,
		OverlayDir:      cfg.Output.OverlayDir,
		OverlayStyle:    style,
		Workers:         cfg.Batch.Workers,
		Recursive:       cfg.Batch.Recursive,
		ContinueOnError: cfg.Batch.ContinueOnError,
	}

	flags := cmd.Flags()
	if flags.Changed("height-override") {
		bc.OverrideHeight, _ = flags.GetFloat64("height-override")
	}
	if flags.Changed("overlay-dir") {
		bc.OverlayDir, _ = flags.GetString("overlay-dir")
	}
	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("recursive") {
		bc.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("continue-on-error") {
		bc.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}
	if quiet, _ := flags.GetBool("quiet"); quiet {
		bc.Explicit = false
	}
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	if progress, _ := flags.GetBool("progress"); progress {
		bc.Progress = &batch.LogProgress{Every: 10}
	}

	if bc.OverrideHeight < 0 {
		return nil, fmt.Errorf("invalid --height-override %g: must not be negative", bc.OverrideHeight)
	}
	if bc.Workers < 0 {
		return nil, fmt.Errorf("invalid --workers %d: must not be negative", bc.Workers)
	}
	return bc, nil
}

func runElevation(cmd *cobra.Command, args []string, cfg *config.Config) error {
	formatName := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		formatName, _ = cmd.Flags().GetString("format")
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	outputFile := cfg.Output.File
	if cmd.Flags().Changed("output") {
		outputFile, _ = cmd.Flags().GetString("output")
	}

	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	slog.Debug("Processing scenes", "args", args, "workers", bc.Workers, "format", format)
	result, err := batch.Process(cmd.Context(), args, bc)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile) //nolint:gosec // G304: output path supplied by the user
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := result.Write(out, format, cfg.ReportOptions()); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if outputFile != "" {
		slog.Info("Results written", "file", outputFile, "scenes", len(result.Entries))
	}

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		result.PrintStats(cmd.ErrOrStderr())
	}
	return nil
}
