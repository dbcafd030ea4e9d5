// Package runner hosts the display pipeline on a single scheduler goroutine
// and connects its hooks to metrics, events and the service manager.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/camdisplay/internal/config"
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/events"
	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/metrics"
)

// DefaultTickPeriod is how often the scheduler offers the pipeline a tick.
// The pipeline's own update interval gates actual presentation.
const DefaultTickPeriod = 5 * time.Millisecond

// Publisher publishes pipeline events.
type Publisher interface {
	Publish(ev events.Event)
}

// Notifier sends service manager notifications such as READY=1.
type Notifier interface {
	Notify(state string) (bool, error)
}

type systemdNotifier struct{}

func (systemdNotifier) Notify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

// Options configures a Runner.
type Options struct {
	// Pipeline wires the controller. Its Hooks are replaced by the runner.
	Pipeline   display.Options
	Events     Publisher
	Logger     *slog.Logger
	TickPeriod time.Duration
	// Notifier defaults to sd_notify.
	Notifier Notifier
	// Watchdog overrides the interval read from WATCHDOG_USEC.
	Watchdog time.Duration
}

// Runner owns a display.Controller. Step, Run and Close must be called from
// one goroutine; SetUpdateInterval, Reload and Status are safe from any.
type Runner struct {
	ctrl       *display.Controller
	events     Publisher
	logger     *slog.Logger
	tickPeriod time.Duration
	notifier   Notifier
	watchdog   time.Duration

	intervals chan time.Duration
	status    atomic.Pointer[display.Status]
	lastStep  atomic.Int64
	settings  atomic.Pointer[config.DisplaySettings]
}

// New creates a runner and its controller.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		events:     opts.Events,
		logger:     logger,
		tickPeriod: opts.TickPeriod,
		notifier:   opts.Notifier,
		watchdog:   opts.Watchdog,
		intervals:  make(chan time.Duration, 1),
	}
	if r.tickPeriod <= 0 {
		r.tickPeriod = DefaultTickPeriod
	}
	if r.notifier == nil {
		r.notifier = systemdNotifier{}
	}
	if r.watchdog <= 0 {
		if d, err := daemon.SdWatchdogEnabled(false); err == nil {
			r.watchdog = d
		}
	}

	pipeline := opts.Pipeline
	if pipeline.Logger == nil {
		pipeline.Logger = logger
	}
	pipeline.Hooks = r.hooks()
	r.ctrl = display.NewController(pipeline)
	r.snapshot()
	return r
}

// Controller returns the hosted controller.
func (r *Runner) Controller() *display.Controller {
	return r.ctrl
}

// Start dumps the configuration, sets the pipeline up and reports readiness.
// A setup failure is returned, but readiness is still reported so the
// service stays up to serve its status.
func (r *Runner) Start() error {
	r.ctrl.DumpConfig()
	err := r.ctrl.Setup()
	r.snapshot()
	metrics.SetTransformEnabled(r.ctrl.TransformEnabled())

	status := "STATUS=Displaying camera frames"
	if err != nil {
		status = "STATUS=Setup failed: " + err.Error()
	}
	r.notify(daemon.SdNotifyReady + "\n" + status)
	return err
}

// Step applies queued configuration and runs one pipeline tick.
func (r *Runner) Step(ctx context.Context, now time.Time) {
	r.lastStep.Store(now.UnixNano())

	select {
	case d := <-r.intervals:
		if d != r.ctrl.UpdateInterval() {
			r.logger.Info("Update interval changed", "from", r.ctrl.UpdateInterval(), "to", d)
			r.ctrl.SetUpdateInterval(d)
			r.snapshot()
		}
	default:
	}

	switch r.ctrl.Tick(ctx, now) {
	case display.OutcomeInactive, display.OutcomeGated:
	default:
		r.snapshot()
	}
}

// Run ticks the pipeline until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tickPeriod)
	defer ticker.Stop()

	go r.Watchdog(ctx)

	r.logger.Info("Scheduler started", "tick_period", r.tickPeriod)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Scheduler stopped")
			return nil
		case now := <-ticker.C:
			r.Step(ctx, now)
		}
	}
}

// Watchdog pings the service manager while Step keeps being called. It
// returns immediately when no watchdog is configured.
func (r *Runner) Watchdog(ctx context.Context) {
	if r.watchdog <= 0 {
		return
	}
	ticker := time.NewTicker(r.watchdog / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if r.Alive(now) {
				r.notify(daemon.SdNotifyWatchdog)
			} else {
				r.logger.Warn("Scheduler stalled, skipping watchdog ping", "last_step", time.Unix(0, r.lastStep.Load()))
			}
		}
	}
}

// Alive reports whether Step ran within one watchdog interval of now.
func (r *Runner) Alive(now time.Time) bool {
	last := r.lastStep.Load()
	if last == 0 {
		return false
	}
	limit := r.watchdog
	if limit <= 0 {
		limit = time.Second
	}
	return now.Sub(time.Unix(0, last)) < limit
}

// Close stops the pipeline and releases its buffers.
func (r *Runner) Close() error {
	r.notify(daemon.SdNotifyStopping)
	err := r.ctrl.Close()
	r.snapshot()
	return err
}

// SetUpdateInterval queues a new update interval for the next Step.
// A newer value replaces one that has not been applied yet.
func (r *Runner) SetUpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case r.intervals <- d:
			return
		default:
		}
		select {
		case <-r.intervals:
		default:
		}
	}
}

// Reload applies reloaded settings. Only the update interval and log levels
// change at runtime; it reports whether the orientation differs from the
// running one and therefore needs a restart.
func (r *Runner) Reload(s config.Reloadable) (restartRequired bool, err error) {
	if err := s.Display.Validate(); err != nil {
		return false, err
	}

	if err := logging.SetLevels(s.Logging.Level, s.Logging.Modules); err != nil {
		r.logger.Warn("Ignoring invalid log levels", "error", err)
	}

	interval := s.Display.UpdateInterval()
	r.SetUpdateInterval(interval)

	running := r.ctrl.Orientation()
	restartRequired = s.Display.Orientation() != running
	if restartRequired {
		r.logger.Warn("Orientation change requires a restart",
			"running_rotation", int(running.Rotation),
			"configured_rotation", s.Display.Rotation,
			"mirror_x", s.Display.MirrorX,
			"mirror_y", s.Display.MirrorY)
	}

	settings := s.Display
	r.settings.Store(&settings)

	r.publish(events.ConfigReloadedEvent{
		UpdateIntervalMs: interval.Milliseconds(),
		RestartRequired:  restartRequired,
		Timestamp:        timestamp(),
	})
	return restartRequired, nil
}

// RestartRequired reports whether the last reload asked for an orientation
// the running pipeline does not use.
func (r *Runner) RestartRequired() bool {
	s := r.settings.Load()
	return s != nil && s.Orientation() != r.ctrl.Orientation()
}

// Status returns the snapshot taken after the last tick that did work.
func (r *Runner) Status() display.Status {
	if st := r.status.Load(); st != nil {
		return *st
	}
	return display.Status{}
}

func (r *Runner) snapshot() {
	st := r.ctrl.Status()
	r.status.Store(&st)
}

func (r *Runner) hooks() display.Hooks {
	return display.Hooks{
		OnStateChange: func(from, to display.State, err error) {
			metrics.SetState(string(to))
			ev := events.PipelineStateChangedEvent{
				From:      string(from),
				To:        string(to),
				Timestamp: timestamp(),
			}
			if err != nil {
				ev.Error = err.Error()
			}
			r.publish(ev)
		},
		OnTick: func(res display.TickResult) {
			metrics.ObserveTick(res.Outcome.String(), string(res.Path), res.Duration)
		},
		OnReport: func(rep display.Report) {
			metrics.SetReport(rep.FPS, rep.DropRate)
			r.publish(events.TelemetryReportEvent{
				FPS:       rep.FPS,
				DropRate:  rep.DropRate,
				Frames:    uint64(rep.Frames),
				Drops:     uint64(rep.Drops),
				ElapsedMs: rep.Elapsed.Milliseconds(),
				Timestamp: rep.At.UTC().Format(time.RFC3339),
			})
		},
		OnTransformError: func(err error) {
			metrics.IncTransformErrors()
			r.publish(events.TransformFallbackEvent{
				Error:     err.Error(),
				Timestamp: timestamp(),
			})
		},
	}
}

func (r *Runner) publish(ev events.Event) {
	if r.events != nil {
		r.events.Publish(ev)
	}
}

func (r *Runner) notify(state string) {
	sent, err := r.notifier.Notify(state)
	if err != nil {
		r.logger.Warn("Service notification failed", "state", state, "error", err)
		return
	}
	if sent {
		r.logger.Debug("Service notified", "state", fmt.Sprintf("%q", state))
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
