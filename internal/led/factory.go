package led

import (
	"log/slog"
	"strings"
)

// boardLEDs maps device tree model fragments to the sysfs LED used for status.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "sys_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New creates a controller for board. A non-empty override names the sysfs
// LED directly. Boards without a known LED get a no-op controller.
func New(board, override string, logger *slog.Logger) Controller {
	if logger == nil {
		logger = slog.Default()
	}

	name := override
	if name == "" {
		for _, b := range boardLEDs {
			if strings.Contains(board, b.model) {
				name = b.led
				break
			}
		}
	}

	if name == "" {
		logger.Info("No status LED for board, using no-op controller", "board_model", board)
		return newNoop(logger)
	}

	logger.Info("Using sysfs status LED", "board_model", board, "led", name)
	return newSysfs(sysfsLEDPath, name)
}
