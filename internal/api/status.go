package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camdisplay/internal/api/models"
	"github.com/smazurov/camdisplay/internal/metrics"
	"github.com/smazurov/camdisplay/internal/version"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Pipeline Status",
		Description: "Current pipeline state, geometry, last telemetry window and cumulative counters",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		if s.options.Status == nil {
			return nil, huma.Error503ServiceUnavailable("Pipeline not configured")
		}
		m := metrics.GetDisplayMetrics()
		return &models.StatusResponse{
			Body: models.StatusData{
				Pipeline: s.options.Status.Status(),
				Metrics: models.MetricsData{
					FPS:             m.FPS,
					DropRate:        m.DropRate,
					Frames:          m.Frames,
					Drops:           m.Drops,
					Fallbacks:       m.Fallbacks,
					TransformErrors: m.TransformErrors,
				},
				RestartRequired: s.options.Status.RestartRequired(),
				Version:         version.String(),
			},
		}, nil
	})
}

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List V4L2 capture devices and whether they deliver RGB565",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.CamerasResponse, error) {
		devices, err := s.options.Cameras()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list cameras", err)
		}
		cameras := make([]models.CameraInfo, 0, len(devices))
		for _, d := range devices {
			cameras = append(cameras, models.CameraInfo{
				Path:    d.Path,
				Card:    d.Card,
				Driver:  d.Driver,
				BusInfo: d.BusInfo,
				Formats: d.Formats,
				RGB565:  d.RGB565,
			})
		}
		return &models.CamerasResponse{
			Body: models.CamerasData{Cameras: cameras, Count: len(cameras)},
		}, nil
	})
}
