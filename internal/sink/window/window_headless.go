//go:build headless

// Package window shows presented frames in a desktop window. Headless builds
// keep the type so callers compile, but Run always fails.
package window

import (
	"context"
	"errors"
	"image"
	"image/color"
	"time"

	periphdisplay "periph.io/x/conn/v3/display"
)

// ErrHeadless is returned by Run in headless builds.
var ErrHeadless = errors.New("window output not available in headless build")

// Options configures the window.
type Options struct {
	Title  string
	Width  int
	Height int
	Scale  int
}

// Window is a no-op canvas output.
type Window struct {
	bounds image.Rectangle
}

var _ periphdisplay.Drawer = (*Window)(nil)

// New creates a window placeholder.
func New(opts Options) *Window {
	return &Window{bounds: image.Rect(0, 0, opts.Width, opts.Height)}
}

// Available reports whether this build can open windows.
func Available() bool { return false }

func (w *Window) String() string                                       { return "Window" }
func (w *Window) Halt() error                                          { return nil }
func (w *Window) ColorModel() color.Model                              { return color.RGBAModel }
func (w *Window) Bounds() image.Rectangle                              { return w.bounds }
func (w *Window) Draw(image.Rectangle, image.Image, image.Point) error { return nil }

// Run fails in headless builds.
func (w *Window) Run(context.Context, func(context.Context, time.Time)) error {
	return ErrHeadless
}
