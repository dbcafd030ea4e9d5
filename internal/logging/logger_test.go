package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	history = nil
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"pipeline": "debug",
			"api":      "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"pipeline", true, true, true},
		{"api", false, false, true},
		{"camera", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	early := GetLogger("sink")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"sink": "debug"}})

	// The early logger shares its LevelVar with the rebuilt one.
	if !early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("early logger should follow the configured module level")
	}
	if !GetLogger("sink").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger after Initialize should have debug enabled")
	}
}

func TestSetLevels(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})
	logger := GetLogger("pipeline")

	if err := SetLevels("warn", map[string]string{"pipeline": "debug"}); err != nil {
		t.Fatalf("SetLevels() error = %v", err)
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("pipeline should log debug after SetLevels")
	}
	if GetLogger("camera").Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("camera should be at warn after SetLevels")
	}

	if err := SetLevels("loud", nil); err == nil {
		t.Error("SetLevels(loud) error = nil")
	}
	if err := SetLevels("info", map[string]string{"api": "chatty"}); err == nil {
		t.Error("SetLevels with invalid module level error = nil")
	}
	// Rejected updates leave levels untouched.
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("pipeline level changed by rejected update")
	}
}

func TestHistoryCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", History: 3})

	logger := GetLogger("pipeline")
	logger.Info("Display stats", "fps", 29.9, "drops", 2)
	logger.Debug("first")
	logger.Debug("second")
	logger.Warn("third")

	h := GetHistory()
	if h == nil {
		t.Fatal("GetHistory() = nil")
	}
	entries := h.Recent(0)
	if len(entries) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(entries))
	}
	if entries[0].Message != "first" || entries[2].Message != "third" {
		t.Errorf("messages = %q..%q, want first..third", entries[0].Message, entries[2].Message)
	}
	if entries[2].Module != "pipeline" || entries[2].Level != "warn" {
		t.Errorf("entry = %+v, want module pipeline level warn", entries[2])
	}

	last := h.Recent(1)
	if len(last) != 1 || last[0].Message != "third" {
		t.Errorf("Recent(1) = %+v", last)
	}
}

func TestHistoryDisabled(t *testing.T) {
	resetState()
	Initialize(Config{History: -1})
	if GetHistory() != nil {
		t.Error("GetHistory() should be nil when disabled")
	}
}

func TestHistoryHandlerAttrs(t *testing.T) {
	h := NewHistory(4)
	logger := slog.New(NewHistoryHandler(h, slog.LevelInfo)).With("module", "camera")

	logger.WithGroup("frame").Info("acquired", "seq", 7, slog.Group("size", "w", 640))
	logger.Debug("filtered")

	entries := h.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "camera" {
		t.Errorf("Module = %q, want camera", e.Module)
	}
	if e.Attrs["frame.seq"] != "7" || e.Attrs["frame.size.w"] != "640" {
		t.Errorf("Attrs = %v", e.Attrs)
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer
	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("both")

	output := buf.String()
	if n := strings.Count(output, "debug only message"); n != 1 {
		t.Errorf("debug message written %d times, want 1. Output: %s", n, output)
	}
	if n := strings.Count(output, "both"); n != 2 {
		t.Errorf("info message written %d times, want 2. Output: %s", n, output)
	}
}

// failingHandler stands in for a journal whose socket went away.
type failingHandler struct {
	slog.Handler
	err error
}

func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }

func TestMultiHandlerSinkFailure(t *testing.T) {
	var buf bytes.Buffer
	console := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	journalErr := errors.New("journal socket closed")
	journal := failingHandler{Handler: slog.NewTextHandler(io.Discard, nil), err: journalErr}
	history := NewHistory(4)

	m := NewMultiHandler(journal, nil, console, NewHistoryHandler(history, slog.LevelInfo))
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "Display stats", 0)
	r.AddAttrs(slog.Float64("fps", 29.9))

	if err := m.Handle(context.Background(), r); !errors.Is(err, journalErr) {
		t.Errorf("Handle() error = %v, want journal error", err)
	}
	if !strings.Contains(buf.String(), "Display stats") {
		t.Errorf("console missing record: %q", buf.String())
	}
	if history.Len() != 1 {
		t.Errorf("history len = %d, want 1", history.Len())
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
