//go:build linux

package platform

import (
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/memory"
)

// newAllocator maps frame buffers outside the Go heap. The limit counts
// whole pages.
func newAllocator(limit int) display.Allocator {
	return memory.NewMmap(limit)
}
