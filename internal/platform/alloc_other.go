//go:build !linux

package platform

import (
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/memory"
)

func newAllocator(limit int) display.Allocator {
	return memory.NewHeap(limit)
}
