// Package collectors polls pipeline components and feeds their state into metrics.
package collectors

import (
	"context"
	"time"

	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/metrics"
	"github.com/smazurov/camdisplay/internal/srm"
)

// StatsSource is a transform engine exposing cumulative counters.
type StatsSource interface {
	Name() string
	Stats() srm.Stats
}

// AcceleratorCollector samples engine counters and derives the engine load.
type AcceleratorCollector struct {
	logger   logging.Logger
	source   StatsSource
	interval time.Duration
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	lastAt   time.Time
	lastBusy time.Duration
}

// NewAcceleratorCollector creates a collector for source.
func NewAcceleratorCollector(source StatsSource, logger logging.Logger) *AcceleratorCollector {
	return &AcceleratorCollector{
		logger:   logger,
		source:   source,
		interval: 5 * time.Second,
		now:      time.Now,
	}
}

// Start begins collecting.
func (c *AcceleratorCollector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run()
	return nil
}

// Stop stops the collector and removes its series.
func (c *AcceleratorCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	metrics.DeleteAcceleratorMetrics(c.source.Name())
	return nil
}

func (c *AcceleratorCollector) run() {
	defer close(c.done)
	c.logger.Info("Starting accelerator metrics collection", "engine", c.source.Name(), "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *AcceleratorCollector) collect() {
	name := c.source.Name()
	stats := c.source.Stats()
	now := c.now()

	metrics.SetAcceleratorClients(name, stats.Clients)
	metrics.SetAcceleratorTransactions(name, stats.Transactions)

	if !c.lastAt.IsZero() {
		if load, ok := loadPercent(stats.Busy-c.lastBusy, now.Sub(c.lastAt)); ok {
			metrics.SetAcceleratorLoad(name, load)
		}
	}
	c.lastAt = now
	c.lastBusy = stats.Busy
}

// loadPercent returns busy as a percentage of wall, clamped to [0, 100].
func loadPercent(busy, wall time.Duration) (float64, bool) {
	if wall <= 0 {
		return 0, false
	}
	load := float64(busy) * 100 / float64(wall)
	return min(max(load, 0), 100), true
}
