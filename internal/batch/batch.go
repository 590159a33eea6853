// Package batch computes elevation outcomes for many scene files in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoScenes is returned when discovery finds nothing to process.
var ErrNoScenes = errors.New("no scene files found")

// Process discovers scene files under args and computes each of them.
func Process(ctx context.Context, args []string, cfg *Config) (*Result, error) {
	files, err := discoverSceneFiles(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover scene files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoScenes
	}

	start := time.Now()
	entries, err := processScenesParallel(ctx, files, cfg)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Entries:     entries,
		Paths:       files,
		Duration:    time.Since(start),
		WorkerCount: resolveWorkers(cfg.Workers, len(files)),
	}, nil
}
