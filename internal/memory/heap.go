// Package memory provides aligned frame buffer allocators.
package memory

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

var (
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = errors.New("alignment must be a power of two")
	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("size must be positive")
	// ErrOutOfMemory is returned when an allocation would exceed the limit.
	ErrOutOfMemory = errors.New("allocation exceeds memory limit")
	// ErrUnknownBuffer is returned when freeing a buffer this allocator did not hand out.
	ErrUnknownBuffer = errors.New("buffer not owned by allocator")
)

// Heap allocates aligned buffers from the Go heap.
//
// Buffers are carved out of an over-allocated backing slice so that the
// first byte lands on the requested boundary. An optional limit caps the
// number of bytes outstanding.
type Heap struct {
	mu    sync.Mutex
	limit int
	used  int
	live  map[*byte]int
}

// NewHeap creates a heap allocator. A limit of zero disables the cap.
func NewHeap(limit int) *Heap {
	return &Heap{limit: limit, live: make(map[*byte]int)}
}

// Alloc returns a zeroed buffer of size bytes whose address is a multiple of alignment.
func (h *Heap) Alloc(size, alignment int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.limit > 0 && h.used+size > h.limit {
		return nil, fmt.Errorf("%w: %d bytes in use, %d requested, limit %d", ErrOutOfMemory, h.used, size, h.limit)
	}

	backing := make([]byte, size+alignment-1)
	off := alignOffset(uintptr(unsafe.Pointer(&backing[0])), alignment)
	buf := backing[off : off+size : off+size]

	h.live[&buf[0]] = size
	h.used += size
	return buf, nil
}

// Free releases a buffer returned by Alloc.
func (h *Heap) Free(buf []byte) error {
	if len(buf) == 0 {
		return ErrUnknownBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	size, ok := h.live[&buf[0]]
	if !ok {
		return ErrUnknownBuffer
	}
	delete(h.live, &buf[0])
	h.used -= size
	return nil
}

// InUse returns the number of bytes currently allocated.
func (h *Heap) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

func checkAlignment(alignment int) error {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	return nil
}

func alignOffset(addr uintptr, alignment int) int {
	mask := uintptr(alignment - 1)
	return int((alignment - int(addr&mask)) & int(mask))
}

// Aligned reports whether buf starts on an alignment boundary.
func Aligned(buf []byte, alignment int) bool {
	if len(buf) == 0 || alignment <= 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(alignment) == 0
}
