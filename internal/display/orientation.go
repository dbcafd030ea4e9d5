package display

import "fmt"

// BytesPerPixel is the size of one RGB565 pixel.
const BytesPerPixel = 2

// Rotation is a display rotation in degrees, counter-clockwise as the
// accelerator applies it.
type Rotation int

// Supported rotations. Values match the accelerator's rotation enumeration.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation converts a degree value into a Rotation.
func ParseRotation(degrees int) (Rotation, error) {
	switch Rotation(degrees) {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return Rotation(degrees), nil
	default:
		return Rotate0, NewError(ErrCodeInvalidConfig, fmt.Sprintf("unsupported rotation %d", degrees), nil)
	}
}

// SwapsAxes reports whether the rotation exchanges width and height.
func (r Rotation) SwapsAxes() bool {
	return r == Rotate90 || r == Rotate270
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FrameSize returns the RGB565 byte size of a frame at this resolution.
func (r Resolution) FrameSize() int {
	return r.Width * r.Height * BytesPerPixel
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Orientation is the geometric transform applied before presentation.
type Orientation struct {
	Rotation Rotation `json:"rotation"`
	MirrorX  bool     `json:"mirror_x"`
	MirrorY  bool     `json:"mirror_y"`
}

// IsIdentity reports whether the orientation leaves frames untouched.
func (o Orientation) IsIdentity() bool {
	return o.Rotation == Rotate0 && !o.MirrorX && !o.MirrorY
}

// Effective returns the presented resolution for a source resolution.
func (o Orientation) Effective(src Resolution) Resolution {
	if o.Rotation.SwapsAxes() {
		return Resolution{Width: src.Height, Height: src.Width}
	}
	return src
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
