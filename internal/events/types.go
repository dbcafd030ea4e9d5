package events

// Event type constants for kelindar/event.
const (
	TypePipelineStateChanged uint32 = iota + 1
	TypeTelemetryReport
	TypeTransformFallback
	TypeConfigReloaded
	TypeDisplayMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PipelineStateChangedEvent is published on every controller state transition.
type PipelineStateChangedEvent struct {
	From      string `json:"from" example:"idle" doc:"Previous state"`
	To        string `json:"to" example:"running" doc:"New state"`
	Error     string `json:"error,omitempty" example:"[BUFFER_ALLOCATION] failed to allocate display buffer" doc:"Failure cause, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineStateChangedEvent.
func (e PipelineStateChangedEvent) Type() uint32 { return TypePipelineStateChanged }

// TelemetryReportEvent carries one completed telemetry window.
type TelemetryReportEvent struct {
	FPS       float64 `json:"fps" example:"29.8" doc:"Presented frames per second over the window"`
	DropRate  float64 `json:"drop_rate" example:"0.7" doc:"Dropped frames as a percentage of attempts"`
	Frames    uint64  `json:"frames" example:"149" doc:"Frames presented in the window"`
	Drops     uint64  `json:"drops" example:"1" doc:"Frames dropped in the window"`
	ElapsedMs int64   `json:"elapsed_ms" example:"5012" doc:"Window length in milliseconds"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Report timestamp"`
}

// Type returns the event type identifier for TelemetryReportEvent.
func (e TelemetryReportEvent) Type() uint32 { return TypeTelemetryReport }

// TransformFallbackEvent is published when a transform fails and the frame
// is presented unrotated instead.
type TransformFallbackEvent struct {
	Error     string `json:"error" example:"[TRANSFORM_FAILED] SRM transaction failed" doc:"Transform error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TransformFallbackEvent.
func (e TransformFallbackEvent) Type() uint32 { return TypeTransformFallback }

// ConfigReloadedEvent is published after the configuration file changed.
type ConfigReloadedEvent struct {
	UpdateIntervalMs int64  `json:"update_interval_ms" example:"33" doc:"Applied update interval"`
	RestartRequired  bool   `json:"restart_required" example:"false" doc:"Whether some changes only apply after a restart"`
	Timestamp        string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// DisplayMetricsEvent is a periodic snapshot of the exported display metrics.
type DisplayMetricsEvent struct {
	EventType       string  `json:"type"`
	FPS             float64 `json:"fps"`
	DropRate        float64 `json:"drop_rate"`
	FramesTotal     uint64  `json:"frames_total"`
	DropsTotal      uint64  `json:"drops_total"`
	FallbacksTotal  uint64  `json:"fallbacks_total"`
	TransformActive bool    `json:"transform_active"`
}

// Type returns the event type identifier for DisplayMetricsEvent.
func (e DisplayMetricsEvent) Type() uint32 { return TypeDisplayMetrics }
