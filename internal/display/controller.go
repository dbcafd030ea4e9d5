package display

import (
	"context"
	"log/slog"
	"time"
)

// DefaultUpdateInterval is the minimum spacing between presented frames.
const DefaultUpdateInterval = 33 * time.Millisecond

// State represents the lifecycle state of a Controller.
type State string

// Controller states.
const (
	StateIdle    State = "idle"    // Created, Setup not run
	StateRunning State = "running" // Setup succeeded, ticks are processed
	StateFailed  State = "failed"  // Setup failed, ticks are ignored
	StateClosed  State = "closed"  // Buffers released
)

// Outcome is the result of a single Tick.
type Outcome int

// Tick outcomes.
const (
	OutcomeInactive   Outcome = iota // not running or source not streaming
	OutcomeGated                     // update interval not yet elapsed
	OutcomeDropped                   // no frame could be acquired
	OutcomeCopyFailed                // frame acquired but nothing presentable
	OutcomePresented                 // frame handed to the sink
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInactive:
		return "inactive"
	case OutcomeGated:
		return "gated"
	case OutcomeDropped:
		return "dropped"
	case OutcomeCopyFailed:
		return "copy_failed"
	case OutcomePresented:
		return "presented"
	default:
		return "unknown"
	}
}

// Path identifies how a presented frame was produced.
type Path string

// Frame paths.
const (
	PathNone      Path = ""
	PathTransform Path = "transform"
	PathFallback  Path = "fallback"
	PathDirect    Path = "direct"
)

// TickResult describes a tick that got past the timing gate.
type TickResult struct {
	Outcome  Outcome
	Path     Path
	Sequence uint32
	Duration time.Duration
}

// Hooks are optional callbacks invoked synchronously from the controller.
type Hooks struct {
	OnStateChange    func(oldState, newState State, err error)
	OnTick           func(result TickResult)
	OnReport         func(report Report)
	OnTransformError func(err error)
}

// Config is the static pipeline configuration.
type Config struct {
	Orientation    Orientation
	UpdateInterval time.Duration
	Alignment      int
	ReportWindow   time.Duration
}

// Options wires a Controller to its collaborators.
type Options struct {
	Config   Config
	Source   FrameSource
	Sink     Sink
	Platform Platform
	Logger   *slog.Logger
	Hooks    Hooks
}

// Controller runs the acquire, transform and present pipeline once per tick.
// It is not safe for concurrent use; all methods must be called from the
// goroutine that drives the ticks.
type Controller struct {
	cfg      Config
	source   FrameSource
	sink     Sink
	platform Platform
	logger   *slog.Logger
	hooks    Hooks

	state   State
	failure error

	buffers   *BufferManager
	request   *SRMRequest
	telemetry *Telemetry

	lastSequence uint32
	lastUpdate   time.Time
	hasUpdated   bool
	lastReport   *Report
}

// NewController creates a controller. Call Setup before ticking.
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.Alignment <= 0 {
		cfg.Alignment = DefaultAlignment
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:       cfg,
		source:    opts.Source,
		sink:      opts.Sink,
		platform:  opts.Platform,
		logger:    logger,
		hooks:     opts.Hooks,
		state:     StateIdle,
		telemetry: NewTelemetry(cfg.ReportWindow),
	}
}

// Setup allocates buffers, registers the accelerator when a transform is
// configured and starts the camera stream. Any error is fatal: the controller
// is marked failed and ignores further ticks.
func (c *Controller) Setup() error {
	if c.state != StateIdle {
		return NewError(ErrCodeInvalidConfig, "setup already ran, state "+string(c.state), nil)
	}
	c.logger.Info("Camera display starting", "mode", "direct")

	if err := c.setup(); err != nil {
		c.logger.Error("Camera display setup failed", "error", err)
		if c.buffers != nil {
			if releaseErr := c.buffers.Release(); releaseErr != nil {
				c.logger.Warn("Failed to release buffers after setup failure", "error", releaseErr)
			}
		}
		c.failure = err
		c.setState(StateFailed, err)
		return err
	}

	effective := c.buffers.Effective()
	c.logger.Info("Camera display ready",
		"mode", "direct",
		"resolution", effective.String(),
		"target_fps", 1000/float64(c.cfg.UpdateInterval.Milliseconds()),
		"buffer_bytes", c.buffers.FrameSize(),
		"transform", c.TransformEnabled())
	c.setState(StateRunning, nil)
	return nil
}

func (c *Controller) setup() error {
	if c.source == nil {
		c.logger.Warn("No camera linked")
		return NewError(ErrCodeNoCamera, "no camera linked", nil)
	}
	if c.platform == nil {
		return NewError(ErrCodeUnsupportedPlatform, "no platform configured", nil)
	}
	if err := c.platform.Check(); err != nil {
		return NewError(ErrCodeUnsupportedPlatform, "direct mode not available on "+c.platform.Name(), err)
	}

	source := Resolution{Width: c.source.ImageWidth(), Height: c.source.ImageHeight()}
	c.logger.Info("Camera resolution", "resolution", source.String())
	if !source.Valid() {
		return NewError(ErrCodeInvalidConfig, "camera reported invalid resolution "+source.String(), nil)
	}

	c.buffers = NewBufferManager(c.platform.Allocator(), source, c.cfg.Orientation, c.cfg.Alignment)
	if err := c.buffers.AllocateDisplay(); err != nil {
		return err
	}
	c.logger.Debug("Display buffer allocated", "bytes", c.buffers.FrameSize())

	if !c.cfg.Orientation.IsIdentity() {
		if err := c.setupAccelerator(); err != nil {
			return err
		}
		c.logger.Info("Accelerator initialized",
			"accelerator", c.platform.Accelerator().Name(),
			"rotation", int(c.cfg.Orientation.Rotation),
			"mirror_x", onOff(c.cfg.Orientation.MirrorX),
			"mirror_y", onOff(c.cfg.Orientation.MirrorY))
	}

	if !c.source.IsStreaming() {
		c.logger.Info("Starting camera streaming")
		if err := c.source.StartStreaming(); err != nil {
			return NewError(ErrCodeStreamStart, "failed to start camera streaming", err)
		}
	}
	return nil
}

func (c *Controller) setupAccelerator() error {
	accel := c.platform.Accelerator()
	if accel == nil {
		return NewError(ErrCodeAcceleratorRegistration, "platform has no accelerator", nil)
	}
	client, err := accel.Register(ClientConfig{
		Operation:              OperationSRM,
		MaxPendingTransactions: 1,
	})
	if err != nil {
		return NewError(ErrCodeAcceleratorRegistration, "accelerator register failed", err)
	}
	c.buffers.AttachAccelerator(client)

	if err := c.buffers.AllocateTransform(); err != nil {
		return err
	}
	effective := c.buffers.Effective()
	c.logger.Info("Transform buffer allocated",
		"resolution", effective.String(),
		"bytes", c.buffers.FrameSize())

	c.request = NewSRMRequest(nil, c.buffers.Transform(), c.buffers.Source(), c.cfg.Orientation)
	return nil
}

// NewSRMRequest builds the transaction that maps a source frame onto an
// oriented destination. Scale is fixed at 1.0: the pipeline never resizes.
func NewSRMRequest(src, dst []byte, source Resolution, o Orientation) *SRMRequest {
	out := o.Effective(source)
	return &SRMRequest{
		In: SRMInput{
			Buffer:      src,
			PicWidth:    source.Width,
			PicHeight:   source.Height,
			BlockWidth:  source.Width,
			BlockHeight: source.Height,
			ColorMode:   ColorModeRGB565,
		},
		Out: SRMOutput{
			Buffer:    dst,
			PicWidth:  out.Width,
			PicHeight: out.Height,
			ColorMode: ColorModeRGB565,
		},
		Rotation:   o.Rotation,
		ScaleX:     1.0,
		ScaleY:     1.0,
		MirrorX:    o.MirrorX,
		MirrorY:    o.MirrorY,
		AlphaMode:  AlphaNoChange,
		AlphaValue: 0xFF,
		Mode:       TransModeBlocking,
	}
}

// Tick runs one pipeline iteration at time now.
func (c *Controller) Tick(ctx context.Context, now time.Time) Outcome {
	if c.state != StateRunning || !c.source.IsStreaming() {
		return OutcomeInactive
	}

	if c.hasUpdated {
		if elapsed := now.Sub(c.lastUpdate); elapsed >= 0 && elapsed < c.cfg.UpdateInterval {
			return OutcomeGated
		}
	}

	started := time.Now()

	if !c.source.AcquireFrame(c.lastSequence) {
		c.telemetry.Drop()
		return c.finish(OutcomeDropped, PathNone, started)
	}

	buf, res, path, ok := c.produce(ctx)
	if !ok {
		c.source.ReleaseFrame()
		c.telemetry.Drop()
		return c.finish(OutcomeCopyFailed, path, started)
	}

	c.lastSequence = c.source.CurrentSequence()
	c.source.ReleaseFrame()

	c.present(buf, res)
	c.lastUpdate = now
	c.hasUpdated = true

	if report, ready := c.telemetry.Frame(now); ready {
		c.lastReport = &report
		c.logger.Info("Display stats",
			"fps", round1(report.FPS),
			"drops", report.Drops,
			"drop_rate", round1(report.DropRate))
		if c.hooks.OnReport != nil {
			c.hooks.OnReport(report)
		}
	}
	return c.finish(OutcomePresented, path, started)
}

// produce fills a presentable buffer from the pinned frame.
func (c *Controller) produce(ctx context.Context) ([]byte, Resolution, Path, bool) {
	source := c.buffers.Source()

	if transform := c.buffers.Transform(); transform != nil {
		if raw := c.source.ImageData(); raw != nil {
			err := c.transform(ctx, raw)
			if err == nil {
				return transform, c.buffers.Effective(), PathTransform, true
			}
			c.logger.Error("Transform failed, falling back to direct copy", "error", err)
			if c.hooks.OnTransformError != nil {
				c.hooks.OnTransformError(err)
			}
		} else {
			c.logger.Debug("Raw camera buffer unavailable, falling back to direct copy")
		}

		if c.copyDirect() == 0 {
			return nil, source, PathFallback, false
		}
		// The copy is unrotated, so it keeps the source dimensions even at
		// 90 and 270 degrees. Labelling it with the swapped ones would skew
		// the picture; the canvas fits it into outputs sized for the rotation.
		return c.buffers.Display(), source, PathFallback, true
	}

	if c.copyDirect() == 0 {
		return nil, source, PathDirect, false
	}
	return c.buffers.Display(), source, PathDirect, true
}

func (c *Controller) transform(ctx context.Context, raw []byte) error {
	client := c.buffers.Client()
	if client == nil {
		return NewError(ErrCodeTransformFailed, "accelerator not registered", nil)
	}
	c.request.In.Buffer = raw
	if err := client.Transform(ctx, c.request); err != nil {
		return NewError(ErrCodeTransformFailed, "SRM transaction failed", err)
	}
	return nil
}

func (c *Controller) copyDirect() int {
	return c.source.CopyFrameRGB565(c.buffers.Display(), true)
}

func (c *Controller) present(buf []byte, res Resolution) {
	if c.sink == nil {
		return
	}
	c.sink.Refresh()
	c.sink.SetBuffer(buf, res.Width, res.Height, PixelFormatTrueColor)
	c.sink.Invalidate()
}

func (c *Controller) finish(outcome Outcome, path Path, started time.Time) Outcome {
	if c.hooks.OnTick != nil {
		c.hooks.OnTick(TickResult{
			Outcome:  outcome,
			Path:     path,
			Sequence: c.lastSequence,
			Duration: time.Since(started),
		})
	}
	return outcome
}

// Close releases buffers and the accelerator registration. It is safe to call
// more than once.
func (c *Controller) Close() error {
	if c.state == StateClosed {
		return nil
	}
	var err error
	if c.buffers != nil {
		err = c.buffers.Release()
	}
	c.setState(StateClosed, err)
	return err
}

// DumpConfig logs the static configuration.
func (c *Controller) DumpConfig() {
	camera := "Not connected"
	source := Resolution{}
	if c.source != nil {
		camera = "Connected"
		source = Resolution{Width: c.source.ImageWidth(), Height: c.source.ImageHeight()}
	}
	platform := "none"
	if c.platform != nil {
		platform = c.platform.Name()
	}
	c.logger.Info("Camera display configuration",
		"camera", camera,
		"resolution", source.String(),
		"update_interval", c.cfg.UpdateInterval,
		"rotation", int(c.cfg.Orientation.Rotation),
		"mirror_x", onOff(c.cfg.Orientation.MirrorX),
		"mirror_y", onOff(c.cfg.Orientation.MirrorY),
		"platform", platform,
		"mode", "direct",
		"transform", c.TransformEnabled())
}

// SetUpdateInterval changes the minimum spacing between presented frames.
func (c *Controller) SetUpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.cfg.UpdateInterval = d
}

// UpdateInterval returns the minimum spacing between presented frames.
func (c *Controller) UpdateInterval() time.Duration {
	return c.cfg.UpdateInterval
}

// Orientation returns the configured orientation.
func (c *Controller) Orientation() Orientation {
	return c.cfg.Orientation
}

// TransformEnabled reports whether frames go through the accelerator.
func (c *Controller) TransformEnabled() bool {
	return c.buffers != nil && c.buffers.Transform() != nil
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Err returns the setup failure, if any.
func (c *Controller) Err() error {
	return c.failure
}

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State            State         `json:"state"`
	Error            string        `json:"error,omitempty"`
	Platform         string        `json:"platform"`
	Source           Resolution    `json:"source"`
	Effective        Resolution    `json:"effective"`
	Orientation      Orientation   `json:"orientation"`
	UpdateInterval   time.Duration `json:"update_interval"`
	TransformEnabled bool          `json:"transform_enabled"`
	BufferBytes      int           `json:"buffer_bytes"`
	LastSequence     uint32        `json:"last_sequence"`
	WindowFrames     uint32        `json:"window_frames"`
	WindowDrops      uint32        `json:"window_drops"`
	LastReport       *Report       `json:"last_report,omitempty"`
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	frames, drops := c.telemetry.Counters()
	st := Status{
		State:            c.state,
		Orientation:      c.cfg.Orientation,
		UpdateInterval:   c.cfg.UpdateInterval,
		TransformEnabled: c.TransformEnabled(),
		LastSequence:     c.lastSequence,
		WindowFrames:     frames,
		WindowDrops:      drops,
	}
	if c.failure != nil {
		st.Error = c.failure.Error()
	}
	if c.platform != nil {
		st.Platform = c.platform.Name()
	}
	if c.buffers != nil {
		st.Source = c.buffers.Source()
		st.Effective = c.buffers.Effective()
		st.BufferBytes = c.buffers.FrameSize()
	}
	if c.lastReport != nil {
		report := *c.lastReport
		st.LastReport = &report
	}
	return st
}

func (c *Controller) setState(newState State, err error) {
	old := c.state
	c.state = newState
	if c.hooks.OnStateChange != nil && old != newState {
		c.hooks.OnStateChange(old, newState, err)
	}
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
