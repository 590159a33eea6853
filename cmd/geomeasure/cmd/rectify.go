package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/MeKo-Tech/geomeasure/internal/imageio"
	"github.com/MeKo-Tech/geomeasure/internal/overlay"
	"github.com/spf13/cobra"
)

const maxDebugDim = 2048

func newRectifyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rectify <image>",
		Short: "Warp a quadrilateral image region to a fronto-parallel rectangle",
		Long: `Warp the image region inside a quadrilateral onto an upright rectangle.

The corners are given clockwise from the top-left. The output width follows
the quad's average edge ratio; the height is set with --height.

Examples:
  geomeasure rectify photo.jpg --quad "120,80 900,110 880,640 100,600" --output sheet.png
  geomeasure rectify photo.png --quad "..." --height 512 --debug-dir debug/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRectify(cmd, args[0], opts.cfg)
		},
	}

	f := cmd.Flags()
	f.String("quad", "", "four corners \"x,y x,y x,y x,y\" clockwise from top-left")
	f.StringP("output", "o", "", "output image (png, jpg, bmp, tiff)")
	f.Int("height", 1024, "output height in pixels")
	f.IntP("workers", "w", 4, "number of parallel warp workers")
	f.String("debug-dir", "", "write the source image with the quad outlined to this directory")
	_ = cmd.MarkFlagRequired("quad")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runRectify(cmd *cobra.Command, input string, cfg *config.Config) error {
	flags := cmd.Flags()
	quadStr, _ := flags.GetString("quad")
	output, _ := flags.GetString("output")

	height := cfg.Rectify.OutputHeight
	if flags.Changed("height") {
		height, _ = flags.GetInt("height")
	}
	workers := cfg.Rectify.Workers
	if flags.Changed("workers") {
		workers, _ = flags.GetInt("workers")
	}
	debugDir := cfg.Rectify.DebugDir
	if flags.Changed("debug-dir") {
		debugDir, _ = flags.GetString("debug-dir")
	}
	if height <= 0 {
		return fmt.Errorf("invalid --height %d: must be positive", height)
	}

	quad, err := geom.ParseQuad(quadStr)
	if err != nil {
		return fmt.Errorf("invalid --quad: %w", err)
	}
	if info := geom.DescribeQuad(quad); !info.Convex {
		slog.Warn("Quad is not convex; the rectified image may be folded", "quad", quadStr)
	}
	if _, _, err := homography.RectifiedSize(quad, height); err != nil {
		return fmt.Errorf("rectify: %w", err)
	}

	img, meta, err := imageio.Load(input)
	if err != nil {
		return err
	}
	slog.Debug("Image loaded", "path", input, "width", meta.Width, "height", meta.Height)

	if debugDir != "" {
		style, err := cfg.OverlayStyle()
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + "_quad"
		// previews are capped at maxDebugDim per side
		preview, _ := imageio.Fit(overlay.RenderQuad(img, quad, style.Ground, style.Thickness), maxDebugDim, maxDebugDim)
		p, err := overlay.WritePNG(debugDir, name, preview)
		if err != nil {
			return fmt.Errorf("failed to write debug image: %w", err)
		}
		slog.Debug("Debug image written", "path", p)
	}

	out, err := homography.RectifyQuad(img, quad, height, workers)
	if err != nil {
		return fmt.Errorf("rectify: %w", err)
	}
	if err := imageio.Save(out, output); err != nil {
		return err
	}

	b := out.Bounds()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rectified %s -> %s (%dx%d)\n", input, output, b.Dx(), b.Dy())
	return nil
}
