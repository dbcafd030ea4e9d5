// Package sink implements presentation canvases for the display pipeline.
package sink

import (
	"image"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
	periphdisplay "periph.io/x/conn/v3/display"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
)

// Canvas is the presentation canvas. It references the last buffer handed to
// SetBuffer and, on Invalidate, redraws it into every attached output. Outputs
// are periph display drawers such as the HTTP preview or the desktop window.
type Canvas struct {
	logger  logging.Logger
	outputs []periphdisplay.Drawer

	// Touched only from the pipeline goroutine.
	buf     []byte
	width   int
	height  int
	format  display.PixelFormat
	dirty   bool
	redraws uint64
	scaled  map[int]*image.RGBA

	mu       sync.Mutex
	snapshot *image.RGBA
}

// NewCanvas creates a canvas that draws into outputs.
func NewCanvas(logger logging.Logger, outputs ...periphdisplay.Drawer) *Canvas {
	return &Canvas{logger: logger, outputs: outputs}
}

// Attach adds an output. Call before the pipeline starts.
func (c *Canvas) Attach(out periphdisplay.Drawer) {
	c.outputs = append(c.outputs, out)
}

// SetBuffer implements display.Sink.
func (c *Canvas) SetBuffer(buf []byte, width, height int, format display.PixelFormat) {
	c.buf, c.width, c.height, c.format = buf, width, height, format
}

// Invalidate implements display.Sink. The redraw runs before Invalidate
// returns, so a frame reaches the outputs in the tick that presented it.
func (c *Canvas) Invalidate() {
	c.dirty = true
	c.redraw()
}

// Refresh implements display.Sink by running a pending redraw.
func (c *Canvas) Refresh() {
	c.redraw()
}

func (c *Canvas) redraw() {
	if !c.dirty || c.buf == nil {
		return
	}
	c.dirty = false

	if c.format != display.PixelFormatTrueColor {
		if c.logger != nil {
			c.logger.Warn("Skipping redraw of unsupported pixel format", "format", c.format.String())
		}
		return
	}
	if len(c.buf) < c.width*c.height*display.BytesPerPixel {
		if c.logger != nil {
			c.logger.Warn("Canvas buffer smaller than its dimensions",
				"bytes", len(c.buf), "width", c.width, "height", c.height)
		}
		return
	}

	src := &Image{Pix: c.buf, Width: c.width, Height: c.height}

	c.mu.Lock()
	if c.snapshot == nil || c.snapshot.Rect.Dx() != c.width || c.snapshot.Rect.Dy() != c.height {
		c.snapshot = image.NewRGBA(src.Bounds())
	}
	src.ToRGBA(c.snapshot)
	c.mu.Unlock()

	for i, out := range c.outputs {
		if err := out.Draw(out.Bounds(), c.frameFor(i, out.Bounds()), image.Point{}); err != nil && c.logger != nil {
			c.logger.Warn("Output draw failed", "output", out.String(), "error", err)
		}
	}
	c.redraws++
}

// frameFor returns the snapshot when it matches bounds, otherwise a copy
// scaled to fit bounds with its aspect ratio kept and black bars around it.
func (c *Canvas) frameFor(i int, bounds image.Rectangle) image.Image {
	if bounds.Dx() == c.width && bounds.Dy() == c.height {
		return c.snapshot
	}
	if c.scaled == nil {
		c.scaled = make(map[int]*image.RGBA)
	}
	dst := c.scaled[i]
	if dst == nil || dst.Rect.Dx() != bounds.Dx() || dst.Rect.Dy() != bounds.Dy() {
		dst = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		c.scaled[i] = dst
	}
	draw.Draw(dst, dst.Rect, image.Black, image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(dst, fitRect(dst.Rect, c.width, c.height), c.snapshot, c.snapshot.Rect, xdraw.Src, nil)
	return dst
}

// fitRect centers the largest w:h rectangle that fits in r.
func fitRect(r image.Rectangle, w, h int) image.Rectangle {
	rw, rh := r.Dx(), r.Dy()
	fw, fh := rw, rw*h/w
	if fh > rh {
		fw, fh = rh*w/h, rh
	}
	x := r.Min.X + (rw-fw)/2
	y := r.Min.Y + (rh-fh)/2
	return image.Rect(x, y, x+fw, y+fh)
}

// Redraws returns the number of completed redraws.
func (c *Canvas) Redraws() uint64 {
	return c.redraws
}

// Snapshot returns a copy of the last redrawn frame, or nil before the first redraw.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil
	}
	out := image.NewRGBA(c.snapshot.Rect)
	draw.Draw(out, out.Rect, c.snapshot, image.Point{}, draw.Src)
	return out
}

// Halt halts every output.
func (c *Canvas) Halt() error {
	for _, out := range c.outputs {
		if err := out.Halt(); err != nil {
			return err
		}
	}
	return nil
}
