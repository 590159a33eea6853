package batch

import (
	"log/slog"
	"sync"
)

// ProgressCallback receives progress notifications. OnProgress may be called
// from several goroutines.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
}

// LogProgress reports progress through slog at info level, at most every
// Every items.
type LogProgress struct {
	Logger *slog.Logger
	Every  int

	mu sync.Mutex
}

func (p *LogProgress) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *LogProgress) OnStart(total int) {
	p.logger().Info("batch started", "scenes", total)
}

func (p *LogProgress) OnProgress(current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	every := max(p.Every, 1)
	if current%every == 0 || current == total {
		p.logger().Info("batch progress", "done", current, "total", total)
	}
}

func (p *LogProgress) OnComplete() {
	p.logger().Info("batch complete")
}
