// Package platform selects the host capabilities the display pipeline runs on.
package platform

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Mode forces a platform choice.
type Mode string

// Platform modes.
const (
	ModeAuto        Mode = "auto"
	ModeDirect      Mode = "direct"
	ModeUnsupported Mode = "unsupported"
)

// ParseMode validates a mode string. Empty selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeDirect, ModeUnsupported:
		return m, nil
	default:
		return "", display.NewError(display.ErrCodeInvalidConfig, fmt.Sprintf("unknown platform mode %q", s), nil)
	}
}

// Options configures platform detection.
type Options struct {
	Mode Mode
	// MaxClients caps concurrent accelerator registrations.
	MaxClients int
	// MemoryLimit caps frame buffer allocations in bytes. Zero disables the cap.
	MemoryLimit int
}

// Detect returns the platform for this host. Auto mode picks the direct
// platform on Linux and the unsupported platform elsewhere.
func Detect(opts Options, logger logging.Logger) display.Platform {
	board := BoardModel()
	mode := opts.Mode
	if mode == "" || mode == ModeAuto {
		mode = ModeUnsupported
		if runtime.GOOS == "linux" {
			mode = ModeDirect
		}
	}

	if logger != nil {
		logger.Info("Detecting display platform",
			"board_model", board,
			"os", runtime.GOOS,
			"mode", string(mode))
	}

	if mode == ModeDirect {
		return newDirect(board, opts, logger)
	}
	return newUnsupported(board, runtime.GOOS)
}

// BoardModel reads the device tree model to identify the board.
// It returns "unknown" when the host has no device tree.
func BoardModel() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00\n")
}
