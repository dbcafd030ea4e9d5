package display

import (
	"errors"
	"fmt"
)

// DefaultAlignment is the address alignment required by the accelerator.
const DefaultAlignment = 64

// BufferManager owns the display buffer, the optional transform buffer and
// the accelerator registration that writes into it.
type BufferManager struct {
	alloc       Allocator
	source      Resolution
	orientation Orientation
	alignment   int

	display   []byte
	transform []byte
	client    TransformClient
}

// NewBufferManager creates a buffer manager for a source resolution and orientation.
func NewBufferManager(alloc Allocator, source Resolution, orientation Orientation, alignment int) *BufferManager {
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	return &BufferManager{
		alloc:       alloc,
		source:      source,
		orientation: orientation,
		alignment:   alignment,
	}
}

// Source returns the pre-rotation resolution.
func (m *BufferManager) Source() Resolution {
	return m.source
}

// Effective returns the presented resolution.
func (m *BufferManager) Effective() Resolution {
	return m.orientation.Effective(m.source)
}

// FrameSize returns the byte size of each buffer.
func (m *BufferManager) FrameSize() int {
	return m.Effective().FrameSize()
}

// AllocateDisplay allocates the display buffer.
func (m *BufferManager) AllocateDisplay() error {
	if m.display != nil {
		return nil
	}
	buf, err := m.allocate()
	if err != nil {
		return NewError(ErrCodeBufferAllocation, "failed to allocate display buffer", err)
	}
	m.display = buf
	return nil
}

// AttachAccelerator hands ownership of a registered transform client to the manager.
func (m *BufferManager) AttachAccelerator(client TransformClient) {
	m.client = client
}

// AllocateTransform allocates the transform buffer. On failure the attached
// accelerator client is unregistered, since it has nothing to write into.
func (m *BufferManager) AllocateTransform() error {
	if m.transform != nil {
		return nil
	}
	buf, err := m.allocate()
	if err != nil {
		m.unregister()
		return NewError(ErrCodeTransformBufferAllocation, "failed to allocate transform buffer", err)
	}
	m.transform = buf
	return nil
}

func (m *BufferManager) allocate() ([]byte, error) {
	size := m.FrameSize()
	if size <= 0 {
		return nil, fmt.Errorf("invalid frame size %d for %s", size, m.source)
	}
	buf, err := m.alloc.Alloc(size, m.alignment)
	if err != nil {
		return nil, err
	}
	if len(buf) < size {
		_ = m.alloc.Free(buf)
		return nil, fmt.Errorf("allocator returned %d bytes, need %d", len(buf), size)
	}
	return buf[:size], nil
}

// Display returns a borrowed view of the display buffer.
func (m *BufferManager) Display() []byte {
	return m.display
}

// Transform returns a borrowed view of the transform buffer, or nil when no
// transform is configured.
func (m *BufferManager) Transform() []byte {
	return m.transform
}

// Client returns the attached accelerator client, if any.
func (m *BufferManager) Client() TransformClient {
	return m.client
}

// Release frees both buffers and unregisters the accelerator client.
// Calling it again is a no-op.
func (m *BufferManager) Release() error {
	var errs []error
	if m.transform != nil {
		if err := m.alloc.Free(m.transform); err != nil {
			errs = append(errs, fmt.Errorf("free transform buffer: %w", err))
		}
		m.transform = nil
	}
	if err := m.unregister(); err != nil {
		errs = append(errs, err)
	}
	if m.display != nil {
		if err := m.alloc.Free(m.display); err != nil {
			errs = append(errs, fmt.Errorf("free display buffer: %w", err))
		}
		m.display = nil
	}
	return errors.Join(errs...)
}

func (m *BufferManager) unregister() error {
	if m.client == nil {
		return nil
	}
	err := m.client.Unregister()
	m.client = nil
	if err != nil {
		return fmt.Errorf("unregister accelerator client: %w", err)
	}
	return nil
}
