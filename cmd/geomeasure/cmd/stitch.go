package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/MeKo-Tech/geomeasure/internal/imageio"
	"github.com/MeKo-Tech/geomeasure/internal/panorama"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStitchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stitch <base image> <next image>",
		Short: "Stitch two overlapping images from keypoint matches",
		Long: `Stitch a second image into the frame of a base image.

The matches file is a JSON or YAML list of correspondences, each pairing a
pixel of the next image (src) with the same scene point in the base image
(dst). At least four are required; more are fitted in a least-squares sense.

  [{"src": {"x": 12, "y": 40}, "dst": {"x": 412, "y": 38}}, ...]

Examples:
  geomeasure stitch left.jpg right.jpg --matches matches.json --output pano.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStitch(cmd, args[0], args[1], opts.cfg)
		},
	}

	f := cmd.Flags()
	f.String("matches", "", "JSON or YAML file with keypoint matches")
	f.StringP("output", "o", "", "output image (png, jpg, bmp, tiff)")
	f.IntP("workers", "w", 4, "number of parallel warp workers")
	_ = cmd.MarkFlagRequired("matches")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runStitch(cmd *cobra.Command, basePath, nextPath string, cfg *config.Config) error {
	matchesPath, _ := cmd.Flags().GetString("matches")
	output, _ := cmd.Flags().GetString("output")
	workers := cfg.Rectify.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	matches, err := loadMatches(matchesPath)
	if err != nil {
		return err
	}
	base, _, err := imageio.Load(basePath)
	if err != nil {
		return err
	}
	next, _, err := imageio.Load(nextPath)
	if err != nil {
		return err
	}

	res, err := panorama.Stitch(base, next, matches, workers)
	if err != nil {
		return fmt.Errorf("stitch: %w", err)
	}
	if err := imageio.Save(res.Image, output); err != nil {
		return err
	}

	b := res.Image.Bounds()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stitched %s + %s -> %s (%dx%d, offset %d,%d, rms %.3f px)\n",
		basePath, nextPath, output, b.Dx(), b.Dy(), res.Offset.X, res.Offset.Y, res.RMS)
	return nil
}

var errNoMatches = errors.New("matches file contains no matches")

// loadMatches reads a match list; .yaml and .yml files are parsed as YAML,
// everything else as JSON.
func loadMatches(path string) ([]homography.Match, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: matches path supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}

	var matches []homography.Match
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &matches)
	default:
		err = json.Unmarshal(data, &matches)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse matches %s: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, errNoMatches
	}
	return matches, nil
}
