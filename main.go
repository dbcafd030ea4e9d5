package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camdisplay/cmd"
	"github.com/smazurov/camdisplay/internal/api"
	"github.com/smazurov/camdisplay/internal/camera"
	"github.com/smazurov/camdisplay/internal/config"
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/events"
	"github.com/smazurov/camdisplay/internal/led"
	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/metrics/collectors"
	"github.com/smazurov/camdisplay/internal/metrics/exporters"
	"github.com/smazurov/camdisplay/internal/platform"
	"github.com/smazurov/camdisplay/internal/runner"
	"github.com/smazurov/camdisplay/internal/sink"
	"github.com/smazurov/camdisplay/internal/sink/window"
	"github.com/smazurov/camdisplay/internal/systemd"
	"github.com/smazurov/camdisplay/internal/version"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Display settings
	DisplayRotation         int  `help:"Rotation in degrees (0, 90, 180, 270)" default:"0" toml:"display.rotation" env:"DISPLAY_ROTATION"`
	DisplayMirrorX          bool `help:"Mirror horizontally" default:"false" toml:"display.mirror_x" env:"DISPLAY_MIRROR_X"`
	DisplayMirrorY          bool `help:"Mirror vertically" default:"false" toml:"display.mirror_y" env:"DISPLAY_MIRROR_Y"`
	DisplayUpdateIntervalMs int  `help:"Minimum time between presented frames in ms" default:"33" toml:"display.update_interval_ms" env:"DISPLAY_UPDATE_INTERVAL_MS"`

	// Camera settings
	CameraKind           string `help:"Frame source (pattern, v4l2)" default:"pattern" toml:"camera.kind" env:"CAMERA_KIND"`
	CameraDevice         string `help:"V4L2 device node" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	CameraWidth          int    `help:"Capture width" default:"640" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight         int    `help:"Capture height" default:"480" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraFPS            int    `help:"Capture frame rate" default:"30" toml:"camera.fps" env:"CAMERA_FPS"`
	CameraRawUnavailable bool   `help:"Hide the raw buffer of the pattern source" default:"false" toml:"camera.raw_unavailable" env:"CAMERA_RAW_UNAVAILABLE"`
	CameraWhiteBalance   string `help:"White balance gains as red,green,blue" default:"" toml:"camera.white_balance" env:"CAMERA_WHITE_BALANCE"`

	// Platform settings
	PlatformMode        string `help:"Platform (auto, direct, unsupported)" default:"auto" toml:"platform.mode" env:"PLATFORM_MODE"`
	PlatformMaxClients  int    `help:"Transform engine client slots" default:"4" toml:"platform.max_clients" env:"PLATFORM_MAX_CLIENTS"`
	PlatformMemoryLimit int    `help:"Frame buffer memory limit in bytes (0 for none)" default:"0" toml:"platform.memory_limit" env:"PLATFORM_MEMORY_LIMIT"`

	// Preview settings
	PreviewEnabled     bool `help:"Serve presented frames on /api/preview" default:"true" toml:"preview.enabled" env:"PREVIEW_ENABLED"`
	PreviewJPEGQuality int  `help:"Preview JPEG quality" default:"75" toml:"preview.jpeg_quality" env:"PREVIEW_JPEG_QUALITY"`
	PreviewMaxFPS      int  `help:"Preview frame rate cap" default:"10" toml:"preview.max_fps" env:"PREVIEW_MAX_FPS"`

	// Window settings
	WindowScale int `help:"Window size multiplier" default:"1" toml:"window.scale" env:"WINDOW_SCALE"`

	// Features settings
	FeaturesLEDControl   bool   `help:"Show pipeline state on the board status LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDName      string `help:"Sysfs LED name overriding board detection" default:"" toml:"features.led_name" env:"FEATURES_LED_NAME"`
	FeaturesLEDDegraded  int    `help:"Drop rate percent shown as degraded" default:"10" toml:"features.led_degraded_drop_rate" env:"FEATURES_LED_DEGRADED"`
	FeaturesServiceName  string `help:"Systemd unit restarted by /api/service/restart (empty disables)" default:"camdisplay.service" toml:"features.service_name" env:"FEATURES_SERVICE_NAME"`
	FeaturesServiceBus   string `help:"Systemd bus (system, user)" default:"system" toml:"features.service_bus" env:"FEATURES_SERVICE_BUS"`
	FeaturesWatchConfig  bool   `help:"Reload display settings when the config file changes" default:"true" toml:"features.watch_config" env:"FEATURES_WATCH_CONFIG"`
	FeaturesMetricsEvent bool   `help:"Publish display metrics on the event stream every second" default:"true" toml:"features.metrics_events" env:"FEATURES_METRICS_EVENTS"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingHistory  int    `help:"Log entries kept for /api/logs (negative disables)" default:"500" toml:"logging.history" env:"LOGGING_HISTORY"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingCamera   string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingPlatform string `help:"Platform logging level" default:"info" toml:"logging.platform" env:"LOGGING_PLATFORM"`
	LoggingSink     string `help:"Sink logging level" default:"info" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig   string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func (o *Options) displaySettings() config.DisplaySettings {
	return config.DisplaySettings{
		Rotation:         o.DisplayRotation,
		MirrorX:          o.DisplayMirrorX,
		MirrorY:          o.DisplayMirrorY,
		UpdateIntervalMs: o.DisplayUpdateIntervalMs,
	}
}

func main() {
	var options *Options
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			History: opts.LoggingHistory,
			Modules: map[string]string{
				"pipeline": opts.LoggingPipeline,
				"camera":   opts.LoggingCamera,
				"platform": opts.LoggingPlatform,
				"sink":     opts.LoggingSink,
				"api":      opts.LoggingAPI,
				"config":   opts.LoggingConfig,
			},
		})
		options = opts

		svc := newService(opts)
		hooks.OnStart(func() {
			if err := svc.run(false); err != nil {
				logging.GetLogger("main").Error("Service failed", "error", err)
				os.Exit(1)
			}
		})
		hooks.OnStop(svc.stop)
	})

	// The window must own the main goroutine, so it runs as a subcommand
	// instead of through the start hook.
	cli.Root().AddCommand(&cobra.Command{
		Use:   "window",
		Short: "Run the pipeline with a desktop preview window",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if !window.Available() {
				fmt.Fprintln(os.Stderr, "This build has no window support (built with the headless tag)")
				os.Exit(1)
			}
			svc := newService(options)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				svc.cancel()
			}()
			if err := svc.run(true); err != nil {
				logging.GetLogger("main").Error("Service failed", "error", err)
				os.Exit(1)
			}
		},
	})
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateCamerasCmd())

	cli.Run()
}

// service wires the pipeline to its outputs, telemetry and HTTP API.
type service struct {
	opts   *Options
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newService(opts *Options) *service {
	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		opts:   opts,
		logger: logging.GetLogger("main"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// stop cancels run and waits for its cleanup.
func (s *service) stop() {
	s.logger.Info("Shutting down")
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.logger.Warn("Shutdown timed out")
	}
}

// run blocks until the service context is canceled. Setup failures of the
// pipeline are not returned: the API keeps serving the failed state.
func (s *service) run(windowed bool) error {
	defer close(s.done)
	opts := s.opts
	ctx := s.ctx

	s.logger.Info("Starting camdisplay", version.Get().LogAttrs()...)

	settings := opts.displaySettings()
	if err := settings.Validate(); err != nil {
		return err
	}
	mode, err := platform.ParseMode(opts.PlatformMode)
	if err != nil {
		return err
	}
	kind, err := camera.ParseKind(opts.CameraKind)
	if err != nil {
		return err
	}
	wb, err := camera.ParseWhiteBalance(opts.CameraWhiteBalance)
	if err != nil {
		return err
	}

	p := platform.Detect(platform.Options{
		Mode:        mode,
		MaxClients:  opts.PlatformMaxClients,
		MemoryLimit: opts.PlatformMemoryLimit,
	}, logging.GetLogger("platform"))

	var source display.FrameSource
	src, err := camera.Open(camera.Config{
		Kind:           kind,
		Device:         opts.CameraDevice,
		Width:          opts.CameraWidth,
		Height:         opts.CameraHeight,
		FPS:            opts.CameraFPS,
		RawUnavailable: opts.CameraRawUnavailable,
		WhiteBalance:   wb,
	}, logging.GetLogger("camera"))
	if err != nil {
		s.logger.Error("Camera unavailable", "error", err)
	} else {
		source = src
		defer func() {
			if closeErr := src.Close(); closeErr != nil {
				s.logger.Warn("Failed to close camera", "error", closeErr)
			}
		}()
	}

	frame := display.Resolution{Width: opts.CameraWidth, Height: opts.CameraHeight}
	if source != nil {
		frame = display.Resolution{Width: source.ImageWidth(), Height: source.ImageHeight()}
	}
	frame = settings.Orientation().Effective(frame)

	canvas := sink.NewCanvas(logging.GetLogger("sink"))
	defer func() {
		if haltErr := canvas.Halt(); haltErr != nil {
			s.logger.Warn("Failed to halt outputs", "error", haltErr)
		}
	}()

	var preview http.Handler
	if opts.PreviewEnabled {
		pv := sink.NewPreview(sink.PreviewOptions{
			Width:       frame.Width,
			Height:      frame.Height,
			JPEGQuality: opts.PreviewJPEGQuality,
			MaxFPS:      opts.PreviewMaxFPS,
		})
		canvas.Attach(pv)
		preview = pv
	}

	var win *window.Window
	if windowed {
		win = window.New(window.Options{Width: frame.Width, Height: frame.Height, Scale: opts.WindowScale})
		canvas.Attach(win)
	}

	eventBus := events.New()

	var indicator *led.Indicator
	if opts.FeaturesLEDControl {
		ledLogger := logging.GetLogger("led")
		controller := led.New(platform.BoardModel(), opts.FeaturesLEDName, ledLogger)
		indicator = led.NewIndicator(controller, eventBus, float64(opts.FeaturesLEDDegraded), ledLogger)
		indicator.Start()
		defer indicator.Stop()
	}

	r := runner.New(runner.Options{
		Pipeline: display.Options{
			Config: display.Config{
				Orientation:    settings.Orientation(),
				UpdateInterval: settings.UpdateInterval(),
			},
			Source:   source,
			Sink:     canvas,
			Platform: p,
			Logger:   logging.GetLogger("pipeline"),
		},
		Events: eventBus,
		Logger: logging.GetLogger("pipeline"),
	})
	if startErr := r.Start(); startErr != nil {
		s.logger.Error("Display pipeline setup failed, serving status only", "error", startErr)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			s.logger.Warn("Failed to close pipeline", "error", closeErr)
		}
	}()

	if stats, ok := p.Accelerator().(collectors.StatsSource); ok {
		collector := collectors.NewAcceleratorCollector(stats, logging.GetLogger("platform"))
		if startErr := collector.Start(ctx); startErr == nil {
			defer func() { _ = collector.Stop() }()
		}
	}

	if opts.FeaturesMetricsEvent {
		sseExporter := exporters.NewSSEExporter(eventBus)
		sseExporter.Start(ctx)
		defer sseExporter.Stop()
	}

	apiOpts := &api.Options{
		AuthUsername:      opts.AuthUsername,
		AuthPassword:      opts.AuthPassword,
		Status:            r,
		EventBus:          eventBus,
		PrometheusHandler: exporters.HTTPHandler(),
		PreviewHandler:    preview,
		ServiceName:       opts.FeaturesServiceName,
	}
	if opts.FeaturesServiceName != "" {
		mgr, mgrErr := systemd.NewManager(ctx, systemd.Bus(opts.FeaturesServiceBus))
		if mgrErr != nil {
			s.logger.Warn("Service control unavailable", "error", mgrErr)
		} else {
			apiOpts.SystemdManager = mgr
			defer mgr.Close()
		}
	}

	server := api.NewServer(apiOpts)
	go func() {
		if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
			s.logger.Error("Failed to start HTTP server", "error", startErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := server.Stop(shutdownCtx); stopErr != nil {
			s.logger.Error("Error stopping HTTP server", "error", stopErr)
		}
	}()

	if opts.FeaturesWatchConfig && opts.Config != "" {
		if _, statErr := os.Stat(opts.Config); statErr == nil {
			watcher := config.NewConfigWatcher(opts.Config, config.LoadReloadable, logging.GetLogger("config"))
			watcher.OnReload(func(rl config.Reloadable) {
				if _, reloadErr := r.Reload(rl); reloadErr != nil {
					s.logger.Warn("Ignoring reloaded settings", "error", reloadErr)
				}
			})
			if startErr := watcher.Start(); startErr != nil {
				s.logger.Warn("Config watcher unavailable", "error", startErr)
			} else {
				defer func() { _ = watcher.Stop() }()
			}
		}
	}

	if win != nil {
		go r.Watchdog(ctx)
		return win.Run(ctx, r.Step)
	}
	return r.Run(ctx)
}
