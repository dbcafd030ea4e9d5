package runner

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camdisplay/internal/camera"
	"github.com/smazurov/camdisplay/internal/config"
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/events"
	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/memory"
	"github.com/smazurov/camdisplay/internal/sink"
	"github.com/smazurov/camdisplay/internal/srm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *mockPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *mockPublisher) ofType(typ uint32) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type() == typ {
			out = append(out, ev)
		}
	}
	return out
}

type mockNotifier struct {
	mu     sync.Mutex
	states []string
}

func (n *mockNotifier) Notify(state string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
	return true, nil
}

func (n *mockNotifier) sent(prefix string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.states {
		if strings.HasPrefix(s, prefix) {
			count++
		}
	}
	return count
}

type testPlatform struct {
	heap     *memory.Heap
	engine   *srm.Engine
	checkErr error
}

func (p *testPlatform) Name() string                     { return "test" }
func (p *testPlatform) Check() error                     { return p.checkErr }
func (p *testPlatform) Allocator() display.Allocator     { return p.heap }
func (p *testPlatform) Accelerator() display.Accelerator { return p.engine }

type harness struct {
	runner   *Runner
	canvas   *sink.Canvas
	pub      *mockPublisher
	notifier *mockNotifier
	clock    time.Time
}

func newHarness(t *testing.T, o display.Orientation, platform display.Platform) *harness {
	t.Helper()
	h := &harness{
		canvas:   sink.NewCanvas(testLogger()),
		pub:      &mockPublisher{},
		notifier: &mockNotifier{},
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	source := camera.NewPattern(camera.PatternOptions{
		Width:  8,
		Height: 4,
		FPS:    100,
		Now:    func() time.Time { return h.clock },
	})
	if platform == nil {
		platform = &testPlatform{heap: memory.NewHeap(0), engine: srm.New(1, nil)}
	}
	h.runner = New(Options{
		Pipeline: display.Options{
			Config: display.Config{
				Orientation:    o,
				UpdateInterval: 20 * time.Millisecond,
				ReportWindow:   200 * time.Millisecond,
			},
			Source:   source,
			Sink:     h.canvas,
			Platform: platform,
		},
		Events:   h.pub,
		Logger:   testLogger(),
		Notifier: h.notifier,
	})
	return h
}

func (h *harness) step(d time.Duration) {
	h.clock = h.clock.Add(d)
	h.runner.Step(context.Background(), h.clock)
}

func TestRunner_StartAndPresent(t *testing.T) {
	h := newHarness(t, display.Orientation{Rotation: display.Rotate90}, nil)

	if err := h.runner.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := h.notifier.sent("READY=1"); got != 1 {
		t.Errorf("READY notifications = %d, want 1", got)
	}

	st := h.runner.Status()
	if st.State != display.StateRunning || !st.TransformEnabled {
		t.Fatalf("status = %+v, want running with transform", st)
	}
	if st.Effective != (display.Resolution{Width: 4, Height: 8}) {
		t.Errorf("effective = %v, want 4x8", st.Effective)
	}

	h.step(25 * time.Millisecond)
	if h.canvas.Redraws() != 1 {
		t.Errorf("redraws after first present = %d, want 1", h.canvas.Redraws())
	}
	if snap := h.canvas.Snapshot(); snap == nil || snap.Bounds().Dx() != 4 || snap.Bounds().Dy() != 8 {
		t.Errorf("canvas snapshot bounds wrong: %v", snap)
	}
	h.step(25 * time.Millisecond)
	if h.canvas.Redraws() != 2 {
		t.Errorf("redraws after second present = %d, want 2", h.canvas.Redraws())
	}
	if h.runner.Status().LastSequence == 0 {
		t.Error("status not refreshed after presentation")
	}

	states := h.pub.ofType(events.TypePipelineStateChanged)
	if len(states) != 1 || states[0].(events.PipelineStateChangedEvent).To != "running" {
		t.Errorf("state events = %+v", states)
	}
}

func TestRunner_TelemetryReport(t *testing.T) {
	h := newHarness(t, display.Orientation{}, nil)
	if err := h.runner.Start(); err != nil {
		t.Fatal(err)
	}

	for range 15 {
		h.step(25 * time.Millisecond)
	}

	reports := h.pub.ofType(events.TypeTelemetryReport)
	if len(reports) == 0 {
		t.Fatal("no telemetry report published")
	}
	rep := reports[0].(events.TelemetryReportEvent)
	if rep.FPS <= 0 || rep.ElapsedMs < 200 {
		t.Errorf("report = %+v", rep)
	}
	if h.runner.Status().LastReport == nil {
		t.Error("status missing last report")
	}
}

func TestRunner_SetupFailure(t *testing.T) {
	platform := &testPlatform{
		checkErr: display.NewError(display.ErrCodeUnsupportedPlatform, "no direct access", nil),
	}
	h := newHarness(t, display.Orientation{}, platform)

	err := h.runner.Start()
	if !display.IsCode(err, display.ErrCodeUnsupportedPlatform) {
		t.Fatalf("Start err = %v, want UNSUPPORTED_PLATFORM", err)
	}
	if got := h.notifier.sent("READY=1"); got != 1 {
		t.Errorf("READY notifications = %d, want 1 even on failure", got)
	}

	st := h.runner.Status()
	if st.State != display.StateFailed || st.Error == "" {
		t.Errorf("status = %+v, want failed with error", st)
	}

	h.step(50 * time.Millisecond)
	if h.canvas.Redraws() != 0 {
		t.Error("failed pipeline presented a frame")
	}

	states := h.pub.ofType(events.TypePipelineStateChanged)
	if len(states) != 1 {
		t.Fatalf("state events = %d, want 1", len(states))
	}
	if ev := states[0].(events.PipelineStateChangedEvent); ev.To != "failed" || ev.Error == "" {
		t.Errorf("state event = %+v", ev)
	}
}

func TestRunner_SetUpdateInterval(t *testing.T) {
	h := newHarness(t, display.Orientation{}, nil)
	if err := h.runner.Start(); err != nil {
		t.Fatal(err)
	}

	h.runner.SetUpdateInterval(70 * time.Millisecond)
	h.runner.SetUpdateInterval(50 * time.Millisecond)
	h.runner.SetUpdateInterval(0)

	h.step(time.Millisecond)
	if got := h.runner.Controller().UpdateInterval(); got != 50*time.Millisecond {
		t.Errorf("interval = %v, want latest queued 50ms", got)
	}
	if got := h.runner.Status().UpdateInterval; got != 50*time.Millisecond {
		t.Errorf("status interval = %v, want 50ms", got)
	}
}

func TestRunner_Reload(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", History: -1})

	tests := []struct {
		name        string
		settings    config.DisplaySettings
		wantRestart bool
		wantErr     bool
	}{
		{"interval only", config.DisplaySettings{Rotation: 90, UpdateIntervalMs: 40}, false, false},
		{"rotation change", config.DisplaySettings{Rotation: 180, UpdateIntervalMs: 33}, true, false},
		{"mirror change", config.DisplaySettings{Rotation: 90, MirrorY: true, UpdateIntervalMs: 33}, true, false},
		{"invalid", config.DisplaySettings{Rotation: 90, UpdateIntervalMs: -1}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, display.Orientation{Rotation: display.Rotate90}, nil)
			if err := h.runner.Start(); err != nil {
				t.Fatal(err)
			}

			restart, err := h.runner.Reload(config.Reloadable{
				Display: tt.settings,
				Logging: logging.Config{Level: "info"},
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if n := len(h.pub.ofType(events.TypeConfigReloaded)); n != 0 {
					t.Errorf("reload events on error = %d, want 0", n)
				}
				return
			}
			if restart != tt.wantRestart || h.runner.RestartRequired() != tt.wantRestart {
				t.Errorf("restart = %v, RestartRequired = %v, want %v", restart, h.runner.RestartRequired(), tt.wantRestart)
			}

			reloads := h.pub.ofType(events.TypeConfigReloaded)
			if len(reloads) != 1 {
				t.Fatalf("reload events = %d, want 1", len(reloads))
			}
			ev := reloads[0].(events.ConfigReloadedEvent)
			if ev.UpdateIntervalMs != int64(tt.settings.UpdateIntervalMs) || ev.RestartRequired != tt.wantRestart {
				t.Errorf("reload event = %+v", ev)
			}

			h.step(time.Millisecond)
			if got := h.runner.Controller().UpdateInterval(); got != tt.settings.UpdateInterval() {
				t.Errorf("interval = %v, want %v", got, tt.settings.UpdateInterval())
			}
			if got := h.runner.Controller().Orientation().Rotation; got != display.Rotate90 {
				t.Errorf("rotation changed at runtime to %v", got)
			}
		})
	}
}

func TestRunner_Close(t *testing.T) {
	h := newHarness(t, display.Orientation{Rotation: display.Rotate180}, nil)
	if err := h.runner.Start(); err != nil {
		t.Fatal(err)
	}
	if err := h.runner.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := h.notifier.sent("STOPPING=1"); got != 1 {
		t.Errorf("STOPPING notifications = %d, want 1", got)
	}
	if st := h.runner.Status(); st.State != display.StateClosed {
		t.Errorf("state = %s, want closed", st.State)
	}
}

func TestRunner_Watchdog(t *testing.T) {
	h := newHarness(t, display.Orientation{}, nil)
	h.runner.watchdog = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.runner.Watchdog(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	if got := h.notifier.sent("WATCHDOG=1"); got != 0 {
		t.Errorf("watchdog pinged %d times before any step", got)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && h.notifier.sent("WATCHDOG=1") == 0 {
		h.runner.Step(ctx, time.Now())
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if h.notifier.sent("WATCHDOG=1") == 0 {
		t.Error("watchdog never pinged while stepping")
	}
}

func TestRunner_Alive(t *testing.T) {
	h := newHarness(t, display.Orientation{}, nil)
	h.runner.watchdog = 100 * time.Millisecond
	now := time.Now()

	if h.runner.Alive(now) {
		t.Error("Alive before first step")
	}
	h.runner.Step(context.Background(), now)
	if !h.runner.Alive(now.Add(50 * time.Millisecond)) {
		t.Error("not alive within interval")
	}
	if h.runner.Alive(now.Add(150 * time.Millisecond)) {
		t.Error("alive after interval elapsed")
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, display.Orientation{}, nil)
	h.runner.tickPeriod = time.Millisecond
	if err := h.runner.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := h.runner.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !h.runner.Alive(time.Now()) {
		t.Error("Run never stepped the pipeline")
	}
}
