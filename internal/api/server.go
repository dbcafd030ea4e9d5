package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camdisplay/internal/api/models"
	"github.com/smazurov/camdisplay/internal/camera"
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/events"
	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/version"
	"github.com/smazurov/camdisplay/ui"
)

// StatusProvider exposes the pipeline state to the API.
type StatusProvider interface {
	Status() display.Status
	RestartRequired() bool
}

// ServiceManager controls the service unit through the service manager.
type ServiceManager interface {
	GetServiceStatus(ctx context.Context, serviceName string) (string, error)
	RestartService(ctx context.Context, serviceName string) error
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	Status       StatusProvider
	EventBus     *events.Bus
	// PrometheusHandler is served on /metrics without auth when set.
	PrometheusHandler http.Handler
	// PreviewHandler serves the frame preview on /api/preview when set.
	PreviewHandler http.Handler
	// Cameras lists capture devices. Defaults to camera.List.
	Cameras        func() ([]camera.DeviceInfo, error)
	SystemdManager ServiceManager
	ServiceName    string
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// basicAuthMiddleware creates middleware for HTTP basic authentication.
// SSE clients that cannot set headers may pass base64 credentials in ?auth=.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, errMsg := readCredentials(ctx)
		if errMsg == "" {
			user, pass, ok := strings.Cut(credentials, ":")
			switch {
			case !ok:
				errMsg = "Invalid credentials format"
			case user != username || pass != password:
				errMsg = "Invalid credentials"
			}
		}
		if errMsg != "" {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="camdisplay"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, errMsg)
			return
		}

		next(ctx)
	}
}

// readCredentials returns the decoded "user:pass" pair or an error message.
func readCredentials(ctx huma.Context) (string, string) {
	encoded := ""
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	} else {
		encoded = ctx.Query("auth")
	}
	if encoded == "" {
		return "", "Authentication required"
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "Invalid credentials format"
	}
	return string(decoded), ""
}

// requireBasicAuth guards a plain handler with the same credentials as the API.
func requireBasicAuth(username, password string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			if decoded, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("auth")); err == nil {
				user, pass, ok = strings.Cut(string(decoded), ":")
			}
		}
		if !ok || user != username || pass != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="camdisplay"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camdisplay API", version.Get().Version)
	config.Info.Description = "Camera display pipeline status, telemetry and preview"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	if opts.Cameras == nil {
		opts.Cameras = camera.List
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "camdisplay.service"
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	if opts.PreviewHandler != nil {
		preview := opts.PreviewHandler
		if opts.AuthUsername != "" && opts.AuthPassword != "" {
			preview = requireBasicAuth(opts.AuthUsername, opts.AuthPassword, preview)
		}
		mux.Handle("GET /api/preview", withCORS(corsConfig, preview))
	}

	server.registerRoutes()

	if page, err := ui.Handler(); err == nil {
		mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			page.ServeHTTP(w, r)
		})
	}
	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves the API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
// SSE streams end when their request context is canceled.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				BuildID:   v.BuildID,
				GoVersion: v.GoVersion,
				Compiler:  v.Compiler,
				Platform:  v.Platform,
			},
		}, nil
	})

	s.registerStatusRoutes()
	s.registerCameraRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
	s.registerSystemdRoutes()
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
