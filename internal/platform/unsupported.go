package platform

import (
	"fmt"

	"github.com/smazurov/camdisplay/internal/display"
)

// unsupported is selected on hosts without direct frame access. Setup fails
// at Check, before any allocation.
type unsupported struct {
	board string
	goos  string
}

func newUnsupported(board, goos string) *unsupported {
	return &unsupported{board: board, goos: goos}
}

func (u *unsupported) Name() string { return "unsupported" }

func (u *unsupported) Check() error {
	return display.NewError(display.ErrCodeUnsupportedPlatform,
		fmt.Sprintf("direct frame access is not available on %s (board %s)", u.goos, u.board), nil)
}

func (u *unsupported) Allocator() display.Allocator     { return nil }
func (u *unsupported) Accelerator() display.Accelerator { return nil }
