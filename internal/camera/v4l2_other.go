//go:build !linux

package camera

import (
	"errors"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
)

var errNoV4L2 = errors.New("V4L2 capture requires linux")

// DeviceInfo describes a capture device found on the host.
type DeviceInfo struct {
	Path    string   `json:"path"`
	Card    string   `json:"card"`
	Driver  string   `json:"driver"`
	BusInfo string   `json:"bus_info"`
	Formats []string `json:"formats"`
	RGB565  bool     `json:"rgb565"`
}

// OpenV4L2 is unavailable on this OS.
func OpenV4L2(_ Config, _ logging.Logger) (Source, error) {
	return nil, display.NewError(display.ErrCodeNoCamera, "V4L2 camera unavailable", errNoV4L2)
}

// List is unavailable on this OS.
func List() ([]DeviceInfo, error) {
	return nil, errNoV4L2
}
