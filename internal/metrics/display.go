// Package metrics provides Prometheus metrics for the display pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camdisplay"

var (
	displayFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "fps",
		Help:      "Presented frames per second over the last telemetry window",
	})

	displayDropRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "drop_rate_percent",
		Help:      "Dropped frames as a percentage of attempts over the last telemetry window",
	})

	displayTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "ticks_total",
		Help:      "Pipeline ticks by outcome and path",
	}, []string{"outcome", "path"})

	displayTransformErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "transform_errors_total",
		Help:      "Transform failures that fell back to an unrotated copy",
	})

	displayTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "tick_duration_seconds",
		Help:      "Time spent in ticks that reached the camera",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .02, .033, .05, .1},
	}, []string{"path"})

	displayState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "state",
		Help:      "Pipeline state, 1 for the current state",
	}, []string{"state"})

	displayTransformEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "display",
		Name:      "transform_enabled",
		Help:      "Whether frames are transformed before presentation",
	})

	// Local cache for SSE exporter access.
	cache   DisplayMetrics
	cacheMu sync.RWMutex
)

var states = []string{"idle", "running", "failed", "closed"}

// DisplayMetrics holds current metric values.
type DisplayMetrics struct {
	FPS             float64
	DropRate        float64
	Frames          uint64
	Drops           uint64
	Fallbacks       uint64
	TransformErrors uint64
	TransformActive bool
	State           string
}

// ObserveTick counts a tick. Ticks stopped by the gate or an inactive
// pipeline are not timed.
func ObserveTick(outcome, path string, d time.Duration) {
	if path == "" {
		path = "none"
	}
	displayTicks.WithLabelValues(outcome, path).Inc()

	switch outcome {
	case "inactive", "gated":
		return
	}
	displayTickDuration.WithLabelValues(path).Observe(d.Seconds())

	updateCache(func(m *DisplayMetrics) {
		switch outcome {
		case "presented":
			m.Frames++
			if path == "fallback" {
				m.Fallbacks++
			}
		case "dropped", "copy_failed":
			m.Drops++
		}
	})
}

// SetReport records a completed telemetry window.
func SetReport(fps, dropRate float64) {
	displayFPS.Set(fps)
	displayDropRate.Set(dropRate)
	updateCache(func(m *DisplayMetrics) {
		m.FPS = fps
		m.DropRate = dropRate
	})
}

// IncTransformErrors counts a transform failure.
func IncTransformErrors() {
	displayTransformErrors.Inc()
	updateCache(func(m *DisplayMetrics) { m.TransformErrors++ })
}

// SetState marks state as the current pipeline state.
func SetState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		displayState.WithLabelValues(s).Set(v)
	}
	updateCache(func(m *DisplayMetrics) { m.State = state })
}

// SetTransformEnabled records whether the transform path is active.
func SetTransformEnabled(enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	displayTransformEnabled.Set(v)
	updateCache(func(m *DisplayMetrics) { m.TransformActive = enabled })
}

// GetDisplayMetrics returns the current metric values.
func GetDisplayMetrics() DisplayMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return cache
}

// ResetDisplayMetrics clears the cached values and the labelled series.
func ResetDisplayMetrics() {
	displayTicks.Reset()
	displayTickDuration.Reset()
	displayState.Reset()
	displayFPS.Set(0)
	displayDropRate.Set(0)
	displayTransformEnabled.Set(0)

	cacheMu.Lock()
	cache = DisplayMetrics{}
	cacheMu.Unlock()
}

func updateCache(update func(*DisplayMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	update(&cache)
}
