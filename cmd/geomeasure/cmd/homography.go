package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func newHomographyCmd() *cobra.Command {
	var src, dst, format string

	cmd := &cobra.Command{
		Use:   "homography",
		Short: "Compute the homography between two sets of points",
		Long: `Compute the 3x3 homography mapping source points onto destination points.

Four correspondences give the exact solution with h33 = 1. More are fitted
in a least-squares sense. Without --dst the source quad is mapped onto the
unit square (0,0) (1,0) (1,1) (0,1).

Points are "x,y" pairs separated by spaces or semicolons.

Examples:
  geomeasure homography --src "10,10 90,12 95,80 5,85"
  geomeasure homography --src "0,0 2,0 2,2 0,2" --dst "0,0 1,0 1,1 0,1" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unsupported output format %q (want text or json)", format)
			}
			srcPts, err := geom.ParsePoints(src)
			if err != nil {
				return fmt.Errorf("invalid --src: %w", err)
			}
			dstPts := homography.UnitSquare[:]
			if dst != "" {
				if dstPts, err = geom.ParsePoints(dst); err != nil {
					return fmt.Errorf("invalid --dst: %w", err)
				}
			}

			h, err := computeHomography(srcPts, dstPts)
			if err != nil {
				return fmt.Errorf("compute homography: %w", err)
			}
			return writeMatrix(cmd.OutOrStdout(), h, format)
		},
	}

	cmd.Flags().StringVar(&src, "src", "", "source points, e.g. \"0,0 4,0 4,3 0,3\"")
	cmd.Flags().StringVar(&dst, "dst", "", "destination points (default unit square)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	_ = cmd.MarkFlagRequired("src")
	return cmd
}

var errPointCount = errors.New("source and destination point counts differ")

// computeHomography uses the exact solver for four pairs and the
// least-squares fit for more.
func computeHomography(src, dst []geom.Point) (homography.Matrix, error) {
	if len(src) <= 4 {
		return homography.Compute(src, dst)
	}
	if len(dst) != len(src) {
		return homography.Matrix{}, fmt.Errorf("%w: %d vs %d", errPointCount, len(src), len(dst))
	}
	matches := make([]homography.Match, len(src))
	for i := range src {
		matches[i] = homography.Match{Src: src[i], Dst: dst[i]}
	}
	return homography.Fit(matches)
}

func writeMatrix(w io.Writer, h homography.Matrix, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Matrix homography.Matrix `json:"matrix"`
		}{h})
	}
	for _, row := range h {
		_, _ = fmt.Fprintf(w, "%14.8g %14.8g %14.8g\n", row[0], row[1], row[2])
	}
	return nil
}

func newApplyCmd() *cobra.Command {
	var matrix, format string
	var points []string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Map points through a homography",
		Long: `Map points through a 3x3 homography given as nine comma-separated values in
row-major order. Points on the vanishing line cannot be mapped and are
reported individually; the remaining points are still printed.

Examples:
  geomeasure apply --matrix 1,0,0,0,1,0,0,0,1 --point 3,4
  geomeasure apply --matrix "$(cat h.txt)" --point "0,0 10,0" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unsupported output format %q (want text or json)", format)
			}
			h, err := parseMatrix(matrix)
			if err != nil {
				return err
			}
			pts, err := geom.ParsePoints(strings.Join(points, " "))
			if err != nil {
				return fmt.Errorf("invalid --point: %w", err)
			}

			mapped := make([]*geom.Point, len(pts))
			errs := make([]error, len(pts))
			for i, p := range pts {
				q, err := homography.Apply(h, p)
				if err != nil {
					errs[i] = err
					continue
				}
				mapped[i] = &q
			}

			out := cmd.OutOrStdout()
			if format == formatJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Points []*geom.Point `json:"points"`
				}{mapped})
			}
			for i, p := range pts {
				if errs[i] != nil {
					_, _ = fmt.Fprintf(out, "%g,%g -> error: %v\n", p.X, p.Y, errs[i])
					continue
				}
				_, _ = fmt.Fprintf(out, "%g,%g -> %.8g,%.8g\n", p.X, p.Y, mapped[i].X, mapped[i].Y)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&matrix, "matrix", "m", "", "nine comma-separated matrix values, row-major")
	cmd.Flags().StringArrayVarP(&points, "point", "p", nil, "point(s) to map, repeatable")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	_ = cmd.MarkFlagRequired("matrix")
	_ = cmd.MarkFlagRequired("point")
	return cmd
}

// parseMatrix reads nine comma or whitespace separated numbers.
func parseMatrix(s string) (homography.Matrix, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	})
	if len(fields) != 9 {
		return homography.Matrix{}, fmt.Errorf("matrix needs 9 values, got %d", len(fields))
	}
	var v [9]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return homography.Matrix{}, fmt.Errorf("matrix value %d: %w", i+1, err)
		}
		v[i] = x
	}
	h := homography.FromFlat(v)
	if !h.Finite() {
		return homography.Matrix{}, homography.ErrNonFinite
	}
	return h, nil
}
