package display

import "time"

// ReportWindow is the length of a telemetry reporting window.
const ReportWindow = 5000 * time.Millisecond

// Report is the telemetry emitted at the end of each window.
type Report struct {
	FPS      float64       `json:"fps"`
	DropRate float64       `json:"drop_rate"`
	Frames   uint32        `json:"frames"`
	Drops    uint32        `json:"drops"`
	Elapsed  time.Duration `json:"elapsed"`
	At       time.Time     `json:"at"`
}

// Telemetry counts presented and dropped frames over a reporting window.
type Telemetry struct {
	window      time.Duration
	frames      uint32
	drops       uint32
	windowStart time.Time
	started     bool
}

// NewTelemetry creates telemetry with the given window. Zero selects ReportWindow.
func NewTelemetry(window time.Duration) *Telemetry {
	if window <= 0 {
		window = ReportWindow
	}
	return &Telemetry{window: window}
}

// Drop counts one dropped tick.
func (t *Telemetry) Drop() {
	t.drops++
}

// Frame counts one presented frame. It returns a report when the window has
// elapsed. The first call only opens the window.
func (t *Telemetry) Frame(now time.Time) (Report, bool) {
	t.frames++

	if !t.started {
		t.started = true
		t.windowStart = now
		return Report{}, false
	}

	elapsed := now.Sub(t.windowStart)
	if elapsed < t.window {
		return Report{}, false
	}

	fps, dropRate := ComputeRates(t.frames, t.drops, elapsed)
	report := Report{
		FPS:      fps,
		DropRate: dropRate,
		Frames:   t.frames,
		Drops:    t.drops,
		Elapsed:  elapsed,
		At:       now,
	}

	t.frames = 0
	t.drops = 0
	t.windowStart = now
	return report, true
}

// Counters returns the current window's frame and drop counts.
func (t *Telemetry) Counters() (frames, drops uint32) {
	return t.frames, t.drops
}

// ComputeRates returns frames per second and the drop percentage for a window.
func ComputeRates(frames, drops uint32, elapsed time.Duration) (fps, dropRate float64) {
	ms := float64(elapsed.Milliseconds())
	if ms > 0 {
		fps = float64(frames) * 1000 / ms
	}
	if total := frames + drops; total > 0 {
		dropRate = float64(drops) * 100 / float64(total)
	}
	return fps, dropRate
}
