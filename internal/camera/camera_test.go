package camera

import (
	"testing"

	"github.com/smazurov/camdisplay/internal/display"
)

func rgb(r, g, b uint16) []byte {
	p := r<<11 | g<<5 | b
	return []byte{byte(p), byte(p >> 8)}
}

func TestCopyWithGains(t *testing.T) {
	tests := []struct {
		name  string
		src   []byte
		wb    WhiteBalance
		apply bool
		want  []byte
	}{
		{"neutral", rgb(10, 20, 30), WhiteBalance{}, true, rgb(10, 20, 30)},
		{"not applied", rgb(10, 20, 30), WhiteBalance{Red: 2}, false, rgb(10, 20, 30)},
		{"red gain", rgb(10, 20, 30), WhiteBalance{Red: 2}, true, rgb(20, 20, 30)},
		{"clamps", rgb(20, 40, 20), WhiteBalance{Red: 2, Green: 2, Blue: 2}, true, rgb(31, 63, 31)},
		{"blue cut", rgb(10, 20, 30), WhiteBalance{Blue: 0.5}, true, rgb(10, 20, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 2)
			if n := copyWithGains(dst, tt.src, tt.wb, tt.apply); n != 2 {
				t.Fatalf("copyWithGains() = %d, want 2", n)
			}
			if dst[0] != tt.want[0] || dst[1] != tt.want[1] {
				t.Errorf("dst = %#v, want %#v", dst, tt.want)
			}
		})
	}
}

func TestCopyWithGainsShortDestination(t *testing.T) {
	src := make([]byte, 8)
	dst := make([]byte, 5)
	if n := copyWithGains(dst, src, WhiteBalance{}, false); n != 4 {
		t.Errorf("copyWithGains() = %d, want 4 (whole pixels only)", n)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"", KindPattern, false},
		{"pattern", KindPattern, false},
		{"V4L2", KindV4L2, false},
		{"usb", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestOpenPattern(t *testing.T) {
	src, err := Open(Config{Kind: KindPattern, Width: 320, Height: 240, FPS: 15}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if src.ImageWidth() != 320 || src.ImageHeight() != 240 {
		t.Errorf("size = %dx%d, want 320x240", src.ImageWidth(), src.ImageHeight())
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(Config{Kind: "usb"}, nil)
	if !display.IsCode(err, display.ErrCodeInvalidConfig) {
		t.Errorf("Open() error = %v, want INVALID_CONFIG", err)
	}
}

func TestParseWhiteBalance(t *testing.T) {
	tests := []struct {
		in      string
		want    WhiteBalance
		wantErr bool
	}{
		{"", WhiteBalance{}, false},
		{"1.0,0.9,1.2", WhiteBalance{Red: 1.0, Green: 0.9, Blue: 1.2}, false},
		{" 1, 1 ,1 ", WhiteBalance{Red: 1, Green: 1, Blue: 1}, false},
		{"1,1", WhiteBalance{}, true},
		{"1,x,1", WhiteBalance{}, true},
		{"1,-0.5,1", WhiteBalance{}, true},
	}
	for _, tt := range tests {
		got, err := ParseWhiteBalance(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWhiteBalance(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseWhiteBalance(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
