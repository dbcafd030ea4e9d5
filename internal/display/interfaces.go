package display

import "context"

// FrameSource is the camera side of the pipeline.
//
// A source owns its frame lifecycle: AcquireFrame pins the newest frame,
// ImageData and CopyFrameRGB565 read from it, ReleaseFrame hands it back.
type FrameSource interface {
	ImageWidth() int
	ImageHeight() int
	IsStreaming() bool
	StartStreaming() error
	// AcquireFrame pins a frame newer than seq. It returns false when none is ready.
	AcquireFrame(seq uint32) bool
	// ImageData returns the raw RGB565 buffer of the pinned frame, or nil
	// when the source cannot expose it without copying.
	ImageData() []byte
	// CopyFrameRGB565 copies the pinned frame into dst and returns the
	// number of bytes written. Zero means nothing was copied.
	CopyFrameRGB565(dst []byte, applyWhiteBalance bool) int
	CurrentSequence() uint32
	ReleaseFrame()
}

// PixelFormat identifies the layout of a buffer handed to a Sink.
type PixelFormat int

// PixelFormatTrueColor is the native 16-bit RGB565 canvas format.
const PixelFormatTrueColor PixelFormat = 1

func (f PixelFormat) String() string {
	if f == PixelFormatTrueColor {
		return "true_color"
	}
	return "unknown"
}

// Sink is the presentation canvas.
//
// The sink keeps a reference to the last buffer it was given and reads it
// during its own redraw. The redraw must finish within the presenting tick:
// the pipeline mutates that buffer again on the next tick.
type Sink interface {
	SetBuffer(buf []byte, width, height int, format PixelFormat)
	// Invalidate marks the buffer changed and redraws it before returning.
	Invalidate()
	// Refresh runs the sink's pending redraw immediately.
	Refresh()
}

// Allocator provides aligned memory for frame buffers.
type Allocator interface {
	Alloc(size, alignment int) ([]byte, error)
	Free(buf []byte) error
}

// Operation selects the accelerator engine a client is registered for.
type Operation string

// OperationSRM is the scale-rotate-mirror engine.
const OperationSRM Operation = "srm"

// ClientConfig describes an accelerator client registration.
type ClientConfig struct {
	Operation              Operation
	MaxPendingTransactions int
}

// Accelerator registers transform clients.
type Accelerator interface {
	Name() string
	Register(cfg ClientConfig) (TransformClient, error)
}

// TransformClient runs blocking SRM transactions.
type TransformClient interface {
	Transform(ctx context.Context, req *SRMRequest) error
	Unregister() error
}

// ColorMode is the pixel layout of an SRM surface.
type ColorMode int

// ColorModeRGB565 is the only color mode the pipeline uses.
const ColorModeRGB565 ColorMode = 1

// AlphaMode controls how the accelerator treats the alpha channel.
type AlphaMode int

// Alpha modes
const (
	AlphaNoChange AlphaMode = iota
	AlphaFixValue
)

// TransMode selects blocking or asynchronous completion.
type TransMode int

// Transaction modes
const (
	TransModeBlocking TransMode = iota
	TransModeNonBlocking
)

// SRMInput is the source surface of an SRM transaction.
type SRMInput struct {
	Buffer       []byte
	PicWidth     int
	PicHeight    int
	BlockWidth   int
	BlockHeight  int
	BlockOffsetX int
	BlockOffsetY int
	ColorMode    ColorMode
}

// SRMOutput is the destination surface of an SRM transaction.
// The capacity is len(Buffer).
type SRMOutput struct {
	Buffer       []byte
	PicWidth     int
	PicHeight    int
	BlockOffsetX int
	BlockOffsetY int
	ColorMode    ColorMode
}

// SRMRequest is one scale-rotate-mirror transaction.
type SRMRequest struct {
	In         SRMInput
	Out        SRMOutput
	Rotation   Rotation
	ScaleX     float32
	ScaleY     float32
	MirrorX    bool
	MirrorY    bool
	RGBSwap    bool
	ByteSwap   bool
	AlphaMode  AlphaMode
	AlphaValue uint8
	Mode       TransMode
}

// Platform bundles the host capabilities the pipeline runs on.
type Platform interface {
	Name() string
	// Check fails when direct frame access is not available on this host.
	Check() error
	Allocator() Allocator
	Accelerator() Accelerator
}
