package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/camdisplay/internal/events"
	"github.com/smazurov/camdisplay/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes the display metrics as events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	m := metrics.GetDisplayMetrics()
	s.eventBus.Publish(events.DisplayMetricsEvent{
		EventType:       "display_metrics",
		FPS:             m.FPS,
		DropRate:        m.DropRate,
		FramesTotal:     m.Frames,
		DropsTotal:      m.Drops,
		FallbacksTotal:  m.Fallbacks,
		TransformActive: m.TransformActive,
	})
}

// GetEventTypes returns the SSE event names and payload types served on the
// events endpoint.
func GetEventTypes() map[string]any {
	return map[string]any{
		"display-metrics":    events.DisplayMetricsEvent{},
		"telemetry-report":   events.TelemetryReportEvent{},
		"pipeline-state":     events.PipelineStateChangedEvent{},
		"transform-fallback": events.TransformFallbackEvent{},
		"config-reloaded":    events.ConfigReloadedEvent{},
	}
}
