package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/overlay"
	"github.com/MeKo-Tech/geomeasure/internal/report"
)

// Config holds all configuration for batch processing.
type Config struct {
	Calculator elevation.Calculator

	// OverrideHeight replaces every scene's own override when positive.
	OverrideHeight float64
	// Explicit controls whether outcomes carry warnings.
	Explicit bool

	// OverlayDir receives one annotated PNG per scene when set.
	OverlayDir   string
	OverlayStyle overlay.Style

	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	Progress ProgressCallback
}

// Result holds the result of batch processing in discovery order.
type Result struct {
	Entries     []report.Entry
	Paths       []string
	Duration    time.Duration
	WorkerCount int
}

// Stats summarises a batch run.
type Stats struct {
	Total       int
	Available   int
	Unavailable int
	Failed      int
}

// Stats counts entries by outcome.
func (r *Result) Stats() Stats {
	s := Stats{Total: len(r.Entries)}
	for _, e := range r.Entries {
		switch {
		case e.Err != nil:
			s.Failed++
		case e.Outcome.Available():
			s.Available++
		default:
			s.Unavailable++
		}
	}
	return s
}

// Write formats the entries to w.
func (r *Result) Write(w io.Writer, f report.Format, opts report.Options) error {
	return report.Write(w, f, r.Entries, opts)
}

// PrintStats writes a short summary to w.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Scenes: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  With angle: %d\n", s.Available)
	_, _ = fmt.Fprintf(w, "  Without angle: %d\n", s.Unavailable)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
}
