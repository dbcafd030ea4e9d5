package camera

import (
	"time"

	"github.com/smazurov/camdisplay/internal/display"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
	defaultFPS    = 30
)

// SMPTE-style bars in RGB565.
var bars = [...]uint16{
	0xFFFF, // white
	0xFFE0, // yellow
	0x07FF, // cyan
	0x07E0, // green
	0xF81F, // magenta
	0xF800, // red
	0x001F, // blue
	0x0000, // black
}

// PatternOptions configures a Pattern source.
type PatternOptions struct {
	Width          int
	Height         int
	FPS            int
	RawUnavailable bool
	WhiteBalance   WhiteBalance
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Pattern is a synthetic camera producing scrolling color bars. Its frame
// rate is derived from the clock, so a frame is ready whenever the clock has
// advanced past the next frame boundary.
type Pattern struct {
	opts      PatternOptions
	frame     []byte
	streaming bool
	started   time.Time
	pinned    bool
	sequence  uint32
}

// NewPattern creates a test pattern source.
func NewPattern(opts PatternOptions) *Pattern {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pattern{
		opts:  opts,
		frame: make([]byte, opts.Width*opts.Height*display.BytesPerPixel),
	}
}

// ImageWidth returns the frame width in pixels.
func (p *Pattern) ImageWidth() int { return p.opts.Width }

// ImageHeight returns the frame height in pixels.
func (p *Pattern) ImageHeight() int { return p.opts.Height }

// IsStreaming reports whether the frame clock is running.
func (p *Pattern) IsStreaming() bool { return p.streaming }

// StartStreaming starts the frame clock.
func (p *Pattern) StartStreaming() error {
	if !p.streaming {
		p.streaming = true
		p.started = p.opts.Now()
	}
	return nil
}

// AcquireFrame pins the current frame when its sequence differs from seq.
func (p *Pattern) AcquireFrame(seq uint32) bool {
	if !p.streaming || p.pinned {
		return false
	}
	current := p.currentFrame()
	if current == seq {
		return false
	}
	p.sequence = current
	p.render(current)
	p.pinned = true
	return true
}

// ImageData returns the pinned frame, or nil when raw access is disabled.
func (p *Pattern) ImageData() []byte {
	if !p.pinned || p.opts.RawUnavailable {
		return nil
	}
	return p.frame
}

// CopyFrameRGB565 copies the pinned frame into dst.
func (p *Pattern) CopyFrameRGB565(dst []byte, applyWhiteBalance bool) int {
	if !p.pinned {
		return 0
	}
	return copyWithGains(dst, p.frame, p.opts.WhiteBalance, applyWhiteBalance)
}

// CurrentSequence returns the sequence of the last pinned frame.
func (p *Pattern) CurrentSequence() uint32 { return p.sequence }

// ReleaseFrame unpins the frame so the next acquire can render a new one.
func (p *Pattern) ReleaseFrame() { p.pinned = false }

// Close stops the frame clock.
func (p *Pattern) Close() error {
	p.streaming = false
	p.pinned = false
	return nil
}

// currentFrame numbers frames from 1 at the start of streaming.
func (p *Pattern) currentFrame() uint32 {
	elapsed := p.opts.Now().Sub(p.started)
	if elapsed < 0 {
		elapsed = 0
	}
	return uint32(elapsed*time.Duration(p.opts.FPS)/time.Second) + 1
}

// render draws the bars shifted left by one pixel per frame.
func (p *Pattern) render(seq uint32) {
	w, h := p.opts.Width, p.opts.Height
	barWidth := max(w/len(bars), 1)
	shift := int(seq % uint32(w))

	row := p.frame[:w*display.BytesPerPixel]
	for x := range w {
		c := bars[((x+shift)%w/barWidth)%len(bars)]
		row[2*x], row[2*x+1] = byte(c), byte(c>>8)
	}
	for y := 1; y < h; y++ {
		copy(p.frame[y*len(row):(y+1)*len(row)], row)
	}
}
