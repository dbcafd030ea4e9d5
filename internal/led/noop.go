package led

import "log/slog"

type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(enabled bool, pattern string) error {
	n.logger.Debug("LED control not available (no-op)", "enabled", enabled, "pattern", pattern)
	return nil
}

func (n *noop) Name() string { return "" }
