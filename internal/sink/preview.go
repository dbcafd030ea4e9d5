package sink

import (
	"image/jpeg"
	"time"

	"periph.io/x/devices/v3/videosink"
)

// PreviewOptions configures the HTTP preview output.
type PreviewOptions struct {
	Width       int
	Height      int
	JPEGQuality int
	MaxFPS      int
}

// NewPreview creates an HTTP preview output sized to the presented frame.
// The returned display is both a canvas output and an http.Handler. Frames
// are served as PNG unless the client asks for format=jpeg.
func NewPreview(opts PreviewOptions) *videosink.Display {
	vo := &videosink.Options{
		Width:  opts.Width,
		Height: opts.Height,
		JPEG:   jpeg.Options{Quality: opts.JPEGQuality},
	}
	if opts.MaxFPS > 0 {
		vo.MinFrameInterval = time.Second / time.Duration(opts.MaxFPS)
	}
	return videosink.New(vo)
}
