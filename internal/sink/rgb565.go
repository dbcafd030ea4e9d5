package sink

import (
	"image"
	"image/color"

	"github.com/smazurov/camdisplay/internal/display"
)

// RGB565 is a 16-bit color with 5 bits red, 6 bits green and 5 bits blue.
type RGB565 uint16

// RGBA implements color.Color.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := expand565(uint16(c))
	r, g, b = uint32(r8), uint32(g8), uint32(b8)
	return r | r<<8, g | g<<8, b | b<<8, 0xFFFF
}

// RGB565Model converts colors to RGB565.
var RGB565Model = color.ModelFunc(func(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return RGB565(uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11))
})

// Image is an image.Image view over a little-endian RGB565 buffer.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

var _ image.Image = (*Image)(nil)

func (m *Image) ColorModel() color.Model { return RGB565Model }

func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return RGB565(0)
	}
	i := (y*m.Width + x) * display.BytesPerPixel
	return RGB565(uint16(m.Pix[i]) | uint16(m.Pix[i+1])<<8)
}

// ToRGBA expands the image into dst, which must cover m's bounds.
func (m *Image) ToRGBA(dst *image.RGBA) {
	w := min(m.Width, dst.Rect.Dx())
	h := min(m.Height, dst.Rect.Dy())
	for y := range h {
		src := m.Pix[y*m.Width*display.BytesPerPixel:]
		row := dst.Pix[y*dst.Stride:]
		for x := range w {
			r, g, b := expand565(uint16(src[2*x]) | uint16(src[2*x+1])<<8)
			o := 4 * x
			row[o], row[o+1], row[o+2], row[o+3] = r, g, b, 0xFF
		}
	}
}

// expand565 widens each field to 8 bits by replicating its high bits.
func expand565(p uint16) (r, g, b uint8) {
	r5 := uint8(p >> 11)
	g6 := uint8(p>>5) & 0x3F
	b5 := uint8(p) & 0x1F
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}
