package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using the Linux sysfs LED interface.
type sysfs struct {
	root string
	name string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{root: root, name: name}
}

func (s *sysfs) Name() string { return s.name }

func (s *sysfs) Set(enabled bool, pattern string) error {
	ledPath := filepath.Join(s.root, s.name)
	if _, err := os.Stat(ledPath); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", s.name, ledPath, err)
	}

	if trigger := triggerFor(pattern); trigger != "" {
		if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte(trigger), 0o644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}
	if pattern == PatternOff {
		enabled = false
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(ledPath, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

// triggerFor maps a pattern to a kernel LED trigger. Solid and off use
// manual control. Unknown patterns are passed through as raw trigger names.
func triggerFor(pattern string) string {
	switch pattern {
	case "":
		return ""
	case PatternSolid, PatternOff:
		return "none"
	case PatternBlink:
		return "heartbeat"
	default:
		return pattern
	}
}
