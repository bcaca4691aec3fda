package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Evictor drops sessions that have been idle for longer than maxIdle
type Evictor interface {
	EvictIdle(ctx context.Context, maxIdle time.Duration) int
}

// Cleaner handles periodic eviction of idle search sessions
type Cleaner struct {
	evictor  Evictor
	interval time.Duration
	maxIdle  time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(evictor Evictor, interval, maxIdle time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}

	return &Cleaner{
		evictor:  evictor,
		interval: interval,
		maxIdle:  maxIdle,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("session cleanup worker started", "interval", c.interval, "max_idle", c.maxIdle)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs one eviction pass
func (c *Cleaner) cleanup(ctx context.Context) {
	evicted := c.evictor.EvictIdle(ctx, c.maxIdle)
	if evicted == 0 {
		slog.Debug("no idle sessions found")
		return
	}

	slog.Info("idle sessions evicted", "count", evicted)
}
