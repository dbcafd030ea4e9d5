package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
)

// DisplaySettings is the [display] table of the config file.
type DisplaySettings struct {
	Rotation         int  `toml:"rotation" json:"rotation"`
	MirrorX          bool `toml:"mirror_x" json:"mirror_x"`
	MirrorY          bool `toml:"mirror_y" json:"mirror_y"`
	UpdateIntervalMs int  `toml:"update_interval_ms" json:"update_interval_ms"`
}

// DefaultDisplaySettings returns the settings used when the file omits the table.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		UpdateIntervalMs: int(display.DefaultUpdateInterval / time.Millisecond),
	}
}

// Validate checks the rotation and the update interval.
func (s DisplaySettings) Validate() error {
	if _, err := display.ParseRotation(s.Rotation); err != nil {
		return err
	}
	if s.UpdateIntervalMs <= 0 {
		return display.NewError(display.ErrCodeInvalidConfig,
			fmt.Sprintf("update interval must be positive, got %d ms", s.UpdateIntervalMs), nil)
	}
	return nil
}

// Orientation converts the settings into a pipeline orientation.
// Call Validate first; an unsupported rotation maps to 0.
func (s DisplaySettings) Orientation() display.Orientation {
	rotation, _ := display.ParseRotation(s.Rotation)
	return display.Orientation{
		Rotation: rotation,
		MirrorX:  s.MirrorX,
		MirrorY:  s.MirrorY,
	}
}

// UpdateInterval returns the interval as a duration.
func (s DisplaySettings) UpdateInterval() time.Duration {
	return time.Duration(s.UpdateIntervalMs) * time.Millisecond
}

// Reloadable is the part of the config file the watcher re-reads.
type Reloadable struct {
	Display DisplaySettings
	Logging logging.Config
}

// LoadReloadable reads the display and logging tables fresh from path.
func LoadReloadable(path string) (Reloadable, error) {
	d, err := LoadDisplaySettings(path)
	if err != nil {
		return Reloadable{}, err
	}
	return Reloadable{Display: d, Logging: LoadLoggingConfig(path)}, nil
}

// LoadDisplaySettings reads and validates the [display] table.
func LoadDisplaySettings(path string) (DisplaySettings, error) {
	settings := DefaultDisplaySettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Display DisplaySettings `toml:"display"`
	}
	raw.Display = settings
	if err := toml.Unmarshal(data, &raw); err != nil {
		return settings, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	settings = raw.Display

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}
