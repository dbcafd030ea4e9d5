package models

import (
	"time"

	"github.com/smazurov/camdisplay/internal/display"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.1" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Build OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models

// MetricsData is the cumulative pipeline counters since start.
type MetricsData struct {
	FPS             float64 `json:"fps" example:"29.8" doc:"FPS from the last telemetry window"`
	DropRate        float64 `json:"drop_rate" example:"0.7" doc:"Drop rate percentage from the last telemetry window"`
	Frames          uint64  `json:"frames_total" example:"12840" doc:"Frames presented since start"`
	Drops           uint64  `json:"drops_total" example:"31" doc:"Ticks dropped since start"`
	Fallbacks       uint64  `json:"fallbacks_total" example:"2" doc:"Frames presented unrotated after a transform failure"`
	TransformErrors uint64  `json:"transform_errors_total" example:"2" doc:"Failed transform transactions"`
}

// StatusData is the pipeline state plus its counters.
type StatusData struct {
	Pipeline        display.Status `json:"pipeline" doc:"Controller snapshot"`
	Metrics         MetricsData    `json:"metrics" doc:"Cumulative counters"`
	RestartRequired bool           `json:"restart_required" example:"false" doc:"Whether the config file asks for an orientation the running pipeline does not use"`
	Version         string         `json:"version" example:"1.0.0" doc:"Application version"`
}

type StatusResponse struct {
	Body StatusData
}

// Log models

type LogsRequest struct {
	Limit  int    `query:"limit" default:"100" minimum:"0" maximum:"10000" doc:"Maximum number of entries, 0 for all"`
	Module string `query:"module" example:"pipeline" doc:"Only return entries from this module"`
}

type LogEntry struct {
	Time    time.Time         `json:"time" doc:"Entry timestamp"`
	Level   string            `json:"level" example:"info" doc:"Log level"`
	Module  string            `json:"module,omitempty" example:"pipeline" doc:"Logger module"`
	Message string            `json:"message" example:"Display stats" doc:"Log message"`
	Attrs   map[string]string `json:"attrs,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int        `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Camera models

type CameraInfo struct {
	Path    string   `json:"path" example:"/dev/video0" doc:"Device node"`
	Card    string   `json:"card" example:"USB Camera" doc:"Card name reported by the driver"`
	Driver  string   `json:"driver" example:"uvcvideo" doc:"Kernel driver"`
	BusInfo string   `json:"bus_info" example:"usb-0000:00:14.0-1" doc:"Bus location"`
	Formats []string `json:"formats" doc:"Supported pixel formats"`
	RGB565  bool     `json:"rgb565" example:"true" doc:"Whether the device can deliver RGB565 frames"`
}

type CamerasData struct {
	Cameras []CameraInfo `json:"cameras" doc:"Capture devices found on the host"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type CamerasResponse struct {
	Body CamerasData
}
