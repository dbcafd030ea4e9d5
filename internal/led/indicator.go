package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/events"
)

// DefaultDegradedDropRate is the drop rate, in percent, above which a
// running pipeline is shown as degraded.
const DefaultDegradedDropRate = 10.0

// Indicator subscribes to pipeline events and reflects them on the status LED:
// solid while running, blinking when failed or degraded, off otherwise.
type Indicator struct {
	controller  Controller
	eventBus    *events.Bus
	logger      *slog.Logger
	threshold   float64
	unsubscribe []func()

	mu       sync.Mutex
	state    string
	degraded bool
	pattern  string
}

// NewIndicator creates an indicator. A non-positive threshold selects
// DefaultDegradedDropRate.
func NewIndicator(controller Controller, eventBus *events.Bus, threshold float64, logger *slog.Logger) *Indicator {
	if threshold <= 0 {
		threshold = DefaultDegradedDropRate
	}
	return &Indicator{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		threshold:  threshold,
		state:      string(display.StateIdle),
	}
}

// Start begins listening for pipeline events.
func (i *Indicator) Start() {
	i.unsubscribe = append(i.unsubscribe,
		i.eventBus.Subscribe(func(e events.PipelineStateChangedEvent) {
			i.mu.Lock()
			i.state = e.To
			i.mu.Unlock()
			i.update()
		}),
		i.eventBus.Subscribe(func(e events.TelemetryReportEvent) {
			i.mu.Lock()
			i.degraded = e.DropRate >= i.threshold
			i.mu.Unlock()
			i.update()
		}),
	)
	i.update()
	i.logger.Info("Status LED indicator started", "led", i.controller.Name())
}

// Stop unsubscribes and switches the LED off.
func (i *Indicator) Stop() {
	for _, unsub := range i.unsubscribe {
		unsub()
	}
	i.unsubscribe = nil
	if err := i.controller.Set(false, PatternOff); err != nil {
		i.logger.Warn("Failed to switch status LED off", "error", err)
	}
}

// Pattern returns the pattern last applied.
func (i *Indicator) Pattern() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pattern
}

func (i *Indicator) update() {
	i.mu.Lock()
	pattern := patternFor(display.State(i.state), i.degraded)
	if pattern == i.pattern {
		i.mu.Unlock()
		return
	}
	i.pattern = pattern
	i.mu.Unlock()

	if err := i.controller.Set(pattern != PatternOff, pattern); err != nil {
		i.logger.Warn("Failed to set status LED", "pattern", pattern, "error", err)
		return
	}
	i.logger.Debug("Status LED updated", "pattern", pattern)
}

func patternFor(state display.State, degraded bool) string {
	switch state {
	case display.StateRunning:
		if degraded {
			return PatternBlink
		}
		return PatternSolid
	case display.StateFailed:
		return PatternBlink
	default:
		return PatternOff
	}
}
