//go:build !headless

// Package window shows presented frames in a desktop window and hosts the
// pipeline tick on the window's update loop.
package window

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	periphdisplay "periph.io/x/conn/v3/display"
)

// Options configures the window.
type Options struct {
	Title  string
	Width  int
	Height int
	// Scale multiplies the initial window size.
	Scale int
}

// Window is a canvas output backed by an ebiten window.
type Window struct {
	opts Options

	mu    sync.Mutex
	frame *image.RGBA
	dirty bool

	halted chan struct{}
	once   sync.Once
}

var _ periphdisplay.Drawer = (*Window)(nil)

// New creates a window sized for width x height frames.
func New(opts Options) *Window {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Title == "" {
		opts.Title = "camdisplay"
	}
	frame := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(frame, frame.Rect, image.Black, image.Point{}, draw.Src)
	return &Window{
		opts:   opts,
		frame:  frame,
		halted: make(chan struct{}),
	}
}

// Available reports whether this build can open windows.
func Available() bool { return true }

func (w *Window) String() string { return "Window" }

// Halt closes the window on its next update.
func (w *Window) Halt() error {
	w.once.Do(func() { close(w.halted) })
	return nil
}

func (w *Window) ColorModel() color.Model { return color.RGBAModel }

func (w *Window) Bounds() image.Rectangle { return w.frame.Rect }

// Draw copies src into the window's frame. It is called from the pipeline.
func (w *Window) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	w.mu.Lock()
	draw.Draw(w.frame, dstRect, src, sp, draw.Src)
	w.dirty = true
	w.mu.Unlock()
	return nil
}

// Run opens the window and calls tick from every window update until ctx is
// done, the window is closed or Halt is called. It must run on the main
// goroutine.
func (w *Window) Run(ctx context.Context, tick func(context.Context, time.Time)) error {
	ebiten.SetWindowSize(w.opts.Width*w.opts.Scale, w.opts.Height*w.opts.Scale)
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetWindowClosingHandled(true)

	err := ebiten.RunGame(&game{window: w, ctx: ctx, tick: tick})
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// game adapts a Window to ebiten.Game.
type game struct {
	window *Window
	ctx    context.Context
	tick   func(context.Context, time.Time)
	image  *ebiten.Image
}

// Update implements ebiten.Game.
func (g *game) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	select {
	case <-g.ctx.Done():
		return ebiten.Termination
	case <-g.window.halted:
		return ebiten.Termination
	default:
	}
	if g.tick != nil {
		g.tick(g.ctx, time.Now())
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *game) Draw(screen *ebiten.Image) {
	w := g.window
	if g.image == nil {
		g.image = ebiten.NewImage(w.opts.Width, w.opts.Height)
	}
	w.mu.Lock()
	if w.dirty {
		g.image.WritePixels(w.frame.Pix)
		w.dirty = false
	}
	w.mu.Unlock()
	screen.DrawImage(g.image, nil)
}

// Layout implements ebiten.Game.
func (g *game) Layout(_, _ int) (int, int) {
	return g.window.opts.Width, g.window.opts.Height
}
