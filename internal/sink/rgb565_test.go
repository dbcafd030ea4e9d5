package sink

import (
	"image/color"
	"testing"
)

func TestRGB565Color(t *testing.T) {
	tests := []struct {
		name string
		in   RGB565
		want color.RGBA
	}{
		{"black", 0x0000, color.RGBA{A: 0xFF}},
		{"white", 0xFFFF, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}},
		{"red", 0xF800, color.RGBA{R: 0xFF, A: 0xFF}},
		{"green", 0x07E0, color.RGBA{G: 0xFF, A: 0xFF}},
		{"blue", 0x001F, color.RGBA{B: 0xFF, A: 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := color.RGBAModel.Convert(tt.in).(color.RGBA)
			if got != tt.want {
				t.Errorf("RGBA = %v, want %v", got, tt.want)
			}
			if back := RGB565Model.Convert(got); back != tt.in {
				t.Errorf("round trip = %#04x, want %#04x", back, tt.in)
			}
		})
	}
}

func TestImageAt(t *testing.T) {
	m := &Image{Pix: []byte{0x00, 0xF8, 0x1F, 0x00}, Width: 2, Height: 1}
	if got := m.At(0, 0); got != RGB565(0xF800) {
		t.Errorf("At(0,0) = %v", got)
	}
	if got := m.At(1, 0); got != RGB565(0x001F) {
		t.Errorf("At(1,0) = %v", got)
	}
	if got := m.At(5, 5); got != RGB565(0) {
		t.Errorf("At out of bounds = %v", got)
	}
}
