//go:build linux

package camera

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
)

// pixelFmtRGB565 is the V4L2 fourcc 'RGBP' (16-bit 5-6-5, little endian).
const pixelFmtRGB565 = 'R' | 'G'<<8 | 'B'<<16 | 'P'<<24

const defaultDevice = "/dev/video0"

// V4L2 is a frame source backed by a Video4Linux2 capture device that
// delivers RGB565 frames through mmap buffers.
type V4L2 struct {
	path   string
	dev    *device.Device
	logger logging.Logger

	width, height int
	stride        int
	wb            WhiteBalance

	mu        sync.Mutex
	latest    []byte
	latestSeq uint32

	cancel    context.CancelFunc
	done      chan struct{}
	streaming bool

	pinned    []byte
	pinnedSeq uint32
	spare     []byte
}

// OpenV4L2 opens a capture device and negotiates RGB565.
func OpenV4L2(cfg Config, logger logging.Logger) (Source, error) {
	path := cfg.Device
	if path == "" {
		path = defaultDevice
	}
	width, height, fps := cfg.Width, cfg.Height, cfg.FPS
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if fps <= 0 {
		fps = defaultFPS
	}

	dev, err := device.Open(path,
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: pixelFmtRGB565,
			Width:       uint32(width),
			Height:      uint32(height),
			Field:       v4l2.FieldNone,
		}),
		device.WithBufferSize(2),
		device.WithFPS(uint32(fps)),
	)
	if err != nil {
		return nil, display.NewError(display.ErrCodeNoCamera, fmt.Sprintf("failed to open %s", path), err)
	}

	format, err := dev.GetPixFormat()
	if err != nil {
		_ = dev.Close()
		return nil, display.NewError(display.ErrCodeNoCamera, "failed to read pixel format", err)
	}
	if uint32(format.PixelFormat) != pixelFmtRGB565 {
		_ = dev.Close()
		return nil, display.NewError(display.ErrCodeNoCamera,
			fmt.Sprintf("%s does not deliver RGB565 (negotiated %s)", path, fourcc(uint32(format.PixelFormat))), nil)
	}

	src := &V4L2{
		path:   path,
		dev:    dev,
		logger: logger,
		width:  int(format.Width),
		height: int(format.Height),
		stride: int(format.BytesPerLine),
		wb:     cfg.WhiteBalance,
	}
	if src.stride == 0 {
		src.stride = src.width * display.BytesPerPixel
	}

	if logger != nil {
		logger.Info("Opened V4L2 camera",
			"device", path,
			"card", dev.Capability().Card,
			"width", src.width,
			"height", src.height,
			"stride", src.stride,
			"fps", fps)
	}
	return src, nil
}

// ImageWidth returns the negotiated capture width.
func (c *V4L2) ImageWidth() int { return c.width }

// ImageHeight returns the negotiated capture height.
func (c *V4L2) ImageHeight() int { return c.height }

// IsStreaming reports whether capture is running.
func (c *V4L2) IsStreaming() bool { return c.streaming }

// StartStreaming starts capture and a goroutine that keeps the newest frame.
func (c *V4L2) StartStreaming() error {
	if c.streaming {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.dev.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", c.path, err)
	}
	c.cancel = cancel
	c.done = make(chan struct{})
	c.streaming = true
	go c.collect(ctx)
	return nil
}

func (c *V4L2) collect(ctx context.Context) {
	defer close(c.done)
	frames := c.dev.GetOutput()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			c.mu.Lock()
			// Reuse the previous backing array when possible.
			c.latest = append(c.latest[:0], frame...)
			c.latestSeq++
			c.mu.Unlock()
		}
	}
}

// AcquireFrame pins the newest captured frame if it differs from seq.
func (c *V4L2) AcquireFrame(seq uint32) bool {
	if c.pinned != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestSeq == 0 || c.latestSeq == seq || len(c.latest) == 0 {
		return false
	}
	// Swap so capture keeps writing into a buffer the pipeline does not hold.
	c.pinned, c.latest = c.latest, c.spare[:0]
	c.pinnedSeq = c.latestSeq
	c.spare = nil
	return true
}

// ImageData exposes the pinned frame when rows are tightly packed.
func (c *V4L2) ImageData() []byte {
	if c.pinned == nil || c.stride != c.width*display.BytesPerPixel {
		return nil
	}
	if len(c.pinned) < c.width*c.height*display.BytesPerPixel {
		return nil
	}
	return c.pinned
}

// CopyFrameRGB565 copies the pinned frame row by row, dropping stride padding.
func (c *V4L2) CopyFrameRGB565(dst []byte, applyWhiteBalance bool) int {
	if c.pinned == nil {
		return 0
	}
	rowBytes := c.width * display.BytesPerPixel
	written := 0
	for y := 0; y < c.height; y++ {
		src := y * c.stride
		if src+rowBytes > len(c.pinned) || written+rowBytes > len(dst) {
			break
		}
		written += copyWithGains(dst[written:written+rowBytes], c.pinned[src:src+rowBytes], c.wb, applyWhiteBalance)
	}
	return written
}

// CurrentSequence returns the driver sequence of the pinned frame.
func (c *V4L2) CurrentSequence() uint32 { return c.pinnedSeq }

// ReleaseFrame returns the pinned buffer for reuse by capture.
func (c *V4L2) ReleaseFrame() {
	if c.pinned == nil {
		return
	}
	c.mu.Lock()
	c.spare = c.pinned[:0]
	c.mu.Unlock()
	c.pinned = nil
}

// Close stops capture and closes the device.
func (c *V4L2) Close() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
	c.streaming = false
	return c.dev.Close()
}

// DeviceInfo describes a capture device found on the host.
type DeviceInfo struct {
	Path    string   `json:"path"`
	Card    string   `json:"card"`
	Driver  string   `json:"driver"`
	BusInfo string   `json:"bus_info"`
	Formats []string `json:"formats"`
	RGB565  bool     `json:"rgb565"`
}

// List enumerates /dev/video* capture devices.
func List() ([]DeviceInfo, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var devices []DeviceInfo
	for _, path := range paths {
		dev, err := device.Open(path)
		if err != nil {
			continue
		}
		caps := dev.Capability()
		if !caps.IsVideoCaptureSupported() {
			_ = dev.Close()
			continue
		}
		info := DeviceInfo{
			Path:    path,
			Card:    caps.Card,
			Driver:  caps.Driver,
			BusInfo: caps.BusInfo,
		}
		if descs, err := dev.GetFormatDescriptions(); err == nil {
			for _, d := range descs {
				info.Formats = append(info.Formats, fourcc(uint32(d.PixelFormat)))
				if uint32(d.PixelFormat) == pixelFmtRGB565 {
					info.RGB565 = true
				}
			}
		}
		_ = dev.Close()
		devices = append(devices, info)
	}
	return devices, nil
}

func fourcc(v uint32) string {
	return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}
