// Package display moves camera frames onto a presentation canvas.
//
// # Pipeline
//
// A Controller is driven by a host scheduler, once per tick:
//
//	gate -> acquire -> transform | copy -> release -> present -> telemetry
//
// The timing gate skips ticks closer together than the update interval.
// A frame that cannot be acquired, or that yields no bytes, is counted as a
// drop and the tick ends early. The camera frame is always released before
// the canvas is touched.
//
// # Transforms
//
// When the Orientation is not the identity, Setup registers a client with
// the platform's SRM accelerator and allocates a transform buffer. Each tick
// then asks the accelerator to rotate and mirror the raw camera buffer into
// it. If the accelerator fails, or the camera cannot expose its raw buffer,
// the tick falls back to a plain RGB565 copy into the display buffer.
// Failures are per tick; the accelerator stays registered.
//
// # Ownership
//
// The BufferManager owns both buffers and the accelerator registration for
// the controller's lifetime. Close releases them once.
//
// # Concurrency
//
// A Controller has no locks. Setup, Tick, Close and the accessors must be
// called from the goroutine that drives the ticks.
package display
