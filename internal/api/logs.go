package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camdisplay/internal/api/models"
	"github.com/smazurov/camdisplay/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Recent log entries kept in memory, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		history := logging.GetHistory()
		if history == nil {
			return nil, huma.Error404NotFound("Log history is disabled")
		}

		entries := history.Recent(0)
		if input.Module != "" {
			filtered := entries[:0]
			for _, e := range entries {
				if e.Module == input.Module {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
		if input.Limit > 0 && len(entries) > input.Limit {
			entries = entries[len(entries)-input.Limit:]
		}

		out := make([]models.LogEntry, len(entries))
		for i, e := range entries {
			out[i] = models.LogEntry{
				Time:    e.Time,
				Level:   e.Level,
				Module:  e.Module,
				Message: e.Message,
				Attrs:   e.Attrs,
			}
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: out, Count: len(out)},
		}, nil
	})
}
