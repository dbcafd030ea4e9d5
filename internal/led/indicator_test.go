package led

import (
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camdisplay/internal/events"
)

type setCall struct {
	enabled bool
	pattern string
}

type mockController struct {
	mu    sync.Mutex
	calls []setCall
}

func (m *mockController) Set(enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{enabled, pattern})
	return nil
}

func (m *mockController) Name() string { return "mock" }

func (m *mockController) last() (setCall, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return setCall{}, 0
	}
	return m.calls[len(m.calls)-1], len(m.calls)
}

func waitPattern(t *testing.T, ind *Indicator, want string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ind.Pattern() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pattern = %q, want %q", ind.Pattern(), want)
}

func TestIndicator_States(t *testing.T) {
	tests := []struct {
		name    string
		publish []events.Event
		want    string
	}{
		{"running", []events.Event{events.PipelineStateChangedEvent{From: "idle", To: "running"}}, PatternSolid},
		{"failed", []events.Event{events.PipelineStateChangedEvent{From: "idle", To: "failed"}}, PatternBlink},
		{"degraded", []events.Event{
			events.PipelineStateChangedEvent{From: "idle", To: "running"},
			events.TelemetryReportEvent{DropRate: 25},
		}, PatternBlink},
		{"recovered", []events.Event{
			events.PipelineStateChangedEvent{From: "idle", To: "running"},
			events.TelemetryReportEvent{DropRate: 25},
			events.TelemetryReportEvent{DropRate: 1},
		}, PatternSolid},
		{"closed", []events.Event{
			events.PipelineStateChangedEvent{From: "idle", To: "running"},
			events.PipelineStateChangedEvent{From: "running", To: "closed"},
		}, PatternOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{}
			bus := events.New()
			ind := NewIndicator(ctrl, bus, 0, newTestLogger())
			ind.Start()
			defer ind.Stop()

			for _, ev := range tt.publish {
				bus.Publish(ev)
				time.Sleep(10 * time.Millisecond)
			}
			waitPattern(t, ind, tt.want)
		})
	}
}

func TestIndicator_StartsOff(t *testing.T) {
	ctrl := &mockController{}
	ind := NewIndicator(ctrl, events.New(), 5, newTestLogger())
	ind.Start()
	defer ind.Stop()

	call, n := ctrl.last()
	if n != 1 || call.enabled || call.pattern != PatternOff {
		t.Errorf("initial call = %+v (calls %d), want off", call, n)
	}
}

func TestIndicator_StopSwitchesOff(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()
	ind := NewIndicator(ctrl, bus, 0, newTestLogger())
	ind.Start()
	bus.Publish(events.PipelineStateChangedEvent{To: "running"})
	waitPattern(t, ind, PatternSolid)

	ind.Stop()
	call, _ := ctrl.last()
	if call.enabled || call.pattern != PatternOff {
		t.Errorf("last call after Stop = %+v, want off", call)
	}
}

func TestPatternFor(t *testing.T) {
	if got := patternFor("idle", true); got != PatternOff {
		t.Errorf("idle = %q, want off", got)
	}
	if got := patternFor("running", false); got != PatternSolid {
		t.Errorf("running = %q, want solid", got)
	}
}
