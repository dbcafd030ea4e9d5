// Package logging provides structured logging with per-module log levels.
//
// # Overview
//
// Loggers are plain *slog.Logger values tagged with a module attribute.
// Records are routed to every available output:
//   - stdout when a terminal, pipe, socket or file is attached
//   - the systemd journal when journald is reachable
//   - an in-memory history served by the status API
//
// # Usage
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"pipeline": "debug",
//			"api":      "warn",
//		},
//	})
//
// Then take a logger per module:
//
//	logger := logging.GetLogger("pipeline")
//	logger.Info("Display stats", "fps", 29.8, "drop_rate", 0.7)
//
// Levels can be changed at runtime with [SetLevels]; loggers already handed
// out follow the change because each module owns a [log/slog.LevelVar].
//
// # Viewing Logs
//
//	journalctl -t camdisplay -f
//	journalctl -t camdisplay MODULE=pipeline
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//	history = 500
//
//	[logging.modules]
//	pipeline = "debug"
package logging
