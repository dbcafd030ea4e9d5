// Package led drives a board status LED from the pipeline state.
package led

// Patterns understood by every Controller.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
	PatternOff   = "off"
)

// Controller abstracts LED hardware control across different SBC boards.
type Controller interface {
	// Set switches the status LED on or off with the given pattern.
	// An empty pattern leaves the trigger unchanged.
	Set(enabled bool, pattern string) error
	// Name returns the LED the controller drives, or "" for a no-op.
	Name() string
}
