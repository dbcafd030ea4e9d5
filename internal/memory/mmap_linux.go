//go:build linux

package memory

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap allocates page-aligned anonymous mappings outside the Go heap. An
// optional limit caps the number of mapped bytes outstanding.
type Mmap struct {
	mu       sync.Mutex
	pageSize int
	limit    int
	used     int
	live     map[uintptr][]byte
}

// NewMmap creates an mmap allocator. A limit of zero disables the cap.
func NewMmap(limit int) *Mmap {
	return &Mmap{pageSize: os.Getpagesize(), limit: limit, live: make(map[uintptr][]byte)}
}

// Alloc maps a zeroed, private region of at least size bytes. Alignments up
// to the page size are satisfied by the mapping itself.
func (m *Mmap) Alloc(size, alignment int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}
	if alignment > m.pageSize {
		return nil, fmt.Errorf("%w: %d exceeds page size %d", ErrInvalidAlignment, alignment, m.pageSize)
	}

	length := (size + m.pageSize - 1) &^ (m.pageSize - 1)

	m.mu.Lock()
	if m.limit > 0 && m.used+length > m.limit {
		used := m.used
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d bytes mapped, %d requested, limit %d", ErrOutOfMemory, used, length, m.limit)
	}
	m.used += length
	m.mu.Unlock()

	region, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		m.mu.Lock()
		m.used -= length
		m.mu.Unlock()
		return nil, fmt.Errorf("mmap %d bytes: %w", length, err)
	}

	m.mu.Lock()
	m.live[uintptr(unsafe.Pointer(&region[0]))] = region
	m.mu.Unlock()
	return region[:size:size], nil
}

// Free unmaps a region returned by Alloc.
func (m *Mmap) Free(buf []byte) error {
	if len(buf) == 0 {
		return ErrUnknownBuffer
	}
	key := uintptr(unsafe.Pointer(&buf[0]))

	m.mu.Lock()
	region, ok := m.live[key]
	if ok {
		delete(m.live, key)
		m.used -= len(region)
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownBuffer
	}
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// InUse returns the number of bytes currently mapped, rounded up to whole pages.
func (m *Mmap) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
