package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/geomeasure/internal/overlay"
	"github.com/MeKo-Tech/geomeasure/internal/report"
	"github.com/MeKo-Tech/geomeasure/internal/scene"
)

type sceneJob struct {
	index int
	path  string
}

type sceneResult struct {
	index int
	entry report.Entry
}

// processScene loads one scene file and computes its outcome. Load errors are
// returned in the entry.
func processScene(path string, cfg *Config) report.Entry {
	sc, err := scene.Load(path)
	if err != nil {
		return report.Entry{Name: path, Err: err}
	}
	if cfg.OverrideHeight > 0 {
		sc.Session.SetOverrideHeight(cfg.OverrideHeight)
	}

	out := sc.Session.Recompute(cfg.Calculator, cfg.Explicit)
	entry := report.Entry{Name: sc.Name, Outcome: out}

	if cfg.OverlayDir != "" {
		writeOverlay(path, sc, cfg)
	}
	return entry
}

func writeOverlay(path string, sc *scene.Scene, cfg *Config) {
	img, err := overlay.Render(nil, sc.Session, cfg.OverlayStyle)
	if err != nil {
		slog.Warn("overlay not rendered", "scene", path, "error", err)
		return
	}
	p, err := overlay.WritePNG(cfg.OverlayDir, sc.Name+"_overlay", img)
	if err != nil {
		slog.Warn("overlay not written", "scene", path, "error", err)
		return
	}
	slog.Debug("overlay written", "scene", path, "path", p)
}

// processScenesParallel runs processScene over a worker pool and returns the
// entries in input order.
func processScenesParallel(ctx context.Context, paths []string, cfg *Config) ([]report.Entry, error) {
	workers := resolveWorkers(cfg.Workers, len(paths))

	if cfg.Progress != nil {
		cfg.Progress.OnStart(len(paths))
		defer cfg.Progress.OnComplete()
	}

	jobs := make(chan sceneJob, len(paths))
	results := make(chan sceneResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, jobs, results, &wg, cfg)
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- sceneJob{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	entries := make([]report.Entry, len(paths))
	done := 0
	for r := range results {
		entries[r.index] = r.entry
		done++
		if cfg.Progress != nil {
			cfg.Progress.OnProgress(done, len(paths))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !cfg.ContinueOnError {
		for i, e := range entries {
			if e.Err != nil {
				return nil, fmt.Errorf("scene %s: %w", paths[i], e.Err)
			}
		}
	}
	return entries, nil
}

// resolveWorkers applies the NumCPU default and never exceeds the job count.
func resolveWorkers(n, jobs int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(min(n, jobs), 1)
}

func worker(ctx context.Context, jobs <-chan sceneJob, results chan<- sceneResult, wg *sync.WaitGroup, cfg *Config) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			entry := processScene(job.path, cfg)
			select {
			case results <- sceneResult{index: job.index, entry: entry}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
