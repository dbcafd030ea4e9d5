// Package camera provides RGB565 frame sources for the display pipeline.
package camera

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
)

// Kind selects a frame source implementation.
type Kind string

// Source kinds.
const (
	KindPattern Kind = "pattern"
	KindV4L2    Kind = "v4l2"
)

// Source is a frame source that holds device resources until closed.
type Source interface {
	display.FrameSource
	io.Closer
}

// WhiteBalance holds per-channel gains applied by CopyFrameRGB565 when the
// caller asks for white balance.
type WhiteBalance struct {
	Red   float64 `toml:"red"`
	Green float64 `toml:"green"`
	Blue  float64 `toml:"blue"`
}

// Neutral reports whether the gains leave pixels unchanged.
func (wb WhiteBalance) Neutral() bool {
	return isUnity(wb.Red) && isUnity(wb.Green) && isUnity(wb.Blue)
}

// ParseWhiteBalance parses "red,green,blue" gains. Empty means neutral.
func ParseWhiteBalance(s string) (WhiteBalance, error) {
	var wb WhiteBalance
	if strings.TrimSpace(s) == "" {
		return wb, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return wb, display.NewError(display.ErrCodeInvalidConfig,
			fmt.Sprintf("white balance %q must be red,green,blue", s), nil)
	}
	gains := make([]float64, 3)
	for i, p := range parts {
		g, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || g < 0 {
			return wb, display.NewError(display.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid white balance gain %q", p), err)
		}
		gains[i] = g
	}
	wb.Red, wb.Green, wb.Blue = gains[0], gains[1], gains[2]
	return wb, nil
}

func isUnity(g float64) bool {
	return g == 0 || g == 1
}

// Config describes the camera to open.
type Config struct {
	Kind   Kind
	Device string
	Width  int
	Height int
	FPS    int
	// RawUnavailable hides the raw buffer of the pattern source so the
	// pipeline always takes the copy path.
	RawUnavailable bool
	WhiteBalance   WhiteBalance
}

// ParseKind validates a source kind. Empty selects the pattern source.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindPattern, nil
	case KindPattern, KindV4L2:
		return k, nil
	default:
		return "", display.NewError(display.ErrCodeInvalidConfig, fmt.Sprintf("unknown camera kind %q", s), nil)
	}
}

// Open creates the configured source. The source is not streaming yet.
func Open(cfg Config, logger logging.Logger) (Source, error) {
	switch cfg.Kind {
	case KindPattern, "":
		if logger != nil {
			logger.Info("Using test pattern camera",
				"width", cfg.Width,
				"height", cfg.Height,
				"fps", cfg.FPS,
				"raw_unavailable", cfg.RawUnavailable)
		}
		return NewPattern(PatternOptions{
			Width:          cfg.Width,
			Height:         cfg.Height,
			FPS:            cfg.FPS,
			RawUnavailable: cfg.RawUnavailable,
			WhiteBalance:   cfg.WhiteBalance,
		}), nil
	case KindV4L2:
		return OpenV4L2(cfg, logger)
	default:
		return nil, display.NewError(display.ErrCodeInvalidConfig, fmt.Sprintf("unknown camera kind %q", cfg.Kind), nil)
	}
}

// copyWithGains copies RGB565 little-endian pixels from src to dst applying
// white balance gains. It returns the number of bytes written.
func copyWithGains(dst, src []byte, wb WhiteBalance, apply bool) int {
	n := min(len(dst), len(src))
	n -= n % display.BytesPerPixel
	if !apply || wb.Neutral() {
		return copy(dst[:n], src[:n])
	}

	rg, gg, bg := gain(wb.Red), gain(wb.Green), gain(wb.Blue)
	for i := 0; i < n; i += display.BytesPerPixel {
		p := uint16(src[i]) | uint16(src[i+1])<<8
		r := scale(p>>11, rg, 0x1F)
		g := scale((p>>5)&0x3F, gg, 0x3F)
		b := scale(p&0x1F, bg, 0x1F)
		p = r<<11 | g<<5 | b
		dst[i], dst[i+1] = byte(p), byte(p>>8)
	}
	return n
}

func gain(g float64) float64 {
	if g == 0 {
		return 1
	}
	return g
}

func scale(v uint16, g float64, maxV uint16) uint16 {
	s := float64(v)*g + 0.5
	if s >= float64(maxV) {
		return maxV
	}
	return uint16(s)
}
