package srm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/smazurov/camdisplay/internal/display"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pixels packs little-endian RGB565 values.
func pixels(vals ...uint16) []byte {
	buf := make([]byte, len(vals)*display.BytesPerPixel)
	for i, v := range vals {
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return buf
}

func unpack(buf []byte) []uint16 {
	out := make([]uint16, len(buf)/2)
	for i := range out {
		out[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}
	return out
}

const (
	a uint16 = iota + 1
	b
	c
	d
	e
	f
)

func TestTransformOrientations(t *testing.T) {
	// 3x2 source:
	//   a b c
	//   d e f
	src := pixels(a, b, c, d, e, f)
	source := display.Resolution{Width: 3, Height: 2}

	tests := []struct {
		name string
		o    display.Orientation
		want []uint16
	}{
		{"identity", display.Orientation{}, []uint16{a, b, c, d, e, f}},
		{"rotate 90", display.Orientation{Rotation: display.Rotate90}, []uint16{c, f, b, e, a, d}},
		{"rotate 180", display.Orientation{Rotation: display.Rotate180}, []uint16{f, e, d, c, b, a}},
		{"rotate 270", display.Orientation{Rotation: display.Rotate270}, []uint16{d, a, e, b, f, c}},
		{"mirror x", display.Orientation{MirrorX: true}, []uint16{c, b, a, f, e, d}},
		{"mirror y", display.Orientation{MirrorY: true}, []uint16{d, e, f, a, b, c}},
		{"mirror both", display.Orientation{MirrorX: true, MirrorY: true}, []uint16{f, e, d, c, b, a}},
		{"rotate 90 mirror x", display.Orientation{Rotation: display.Rotate90, MirrorX: true}, []uint16{f, c, e, b, d, a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := New(0, testLogger())
			client, err := engine.Register(display.ClientConfig{Operation: display.OperationSRM, MaxPendingTransactions: 1})
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			defer client.Unregister()

			dst := make([]byte, len(src))
			req := display.NewSRMRequest(src, dst, source, tt.o)
			if err := client.Transform(context.Background(), req); err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			if got := unpack(dst); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransformSwaps(t *testing.T) {
	red := uint16(0xF800)

	tests := []struct {
		name     string
		rgbSwap  bool
		byteSwap bool
		want     []byte
	}{
		{"none", false, false, []byte{0x00, 0xF8}},
		{"rgb swap", true, false, []byte{0x1F, 0x00}},
		{"byte swap", false, true, []byte{0xF8, 0x00}},
		{"both", true, true, []byte{0x00, 0x1F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := New(1, testLogger())
			client, err := engine.Register(display.ClientConfig{Operation: display.OperationSRM})
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			dst := make([]byte, 2)
			req := display.NewSRMRequest(pixels(red), dst, display.Resolution{Width: 1, Height: 1}, display.Orientation{})
			req.RGBSwap = tt.rgbSwap
			req.ByteSwap = tt.byteSwap
			if err := client.Transform(context.Background(), req); err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			if !reflect.DeepEqual(dst, tt.want) {
				t.Errorf("output = %#v, want %#v", dst, tt.want)
			}
		})
	}
}

func TestTransformScale(t *testing.T) {
	// 2x1 source scaled 2x into 4x2.
	src := pixels(a, b)
	dst := make([]byte, 4*2*display.BytesPerPixel)
	req := &display.SRMRequest{
		In: display.SRMInput{
			Buffer: src, PicWidth: 2, PicHeight: 1, BlockWidth: 2, BlockHeight: 1,
			ColorMode: display.ColorModeRGB565,
		},
		Out: display.SRMOutput{
			Buffer: dst, PicWidth: 4, PicHeight: 2, ColorMode: display.ColorModeRGB565,
		},
		ScaleX: 2, ScaleY: 2,
		Mode: display.TransModeBlocking,
	}

	engine := New(1, testLogger())
	client, _ := engine.Register(display.ClientConfig{Operation: display.OperationSRM})
	if err := client.Transform(context.Background(), req); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	want := []uint16{a, a, b, b, a, a, b, b}
	if got := unpack(dst); !reflect.DeepEqual(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestTransformBlockOffsets(t *testing.T) {
	// Copy the centre pixel of a 3x3 picture into the corner of a 2x2 output.
	src := pixels(a, a, a, a, e, a, a, a, a)
	dst := make([]byte, 2*2*display.BytesPerPixel)
	req := &display.SRMRequest{
		In: display.SRMInput{
			Buffer: src, PicWidth: 3, PicHeight: 3, BlockWidth: 1, BlockHeight: 1,
			BlockOffsetX: 1, BlockOffsetY: 1, ColorMode: display.ColorModeRGB565,
		},
		Out: display.SRMOutput{
			Buffer: dst, PicWidth: 2, PicHeight: 2, BlockOffsetX: 1, BlockOffsetY: 1,
			ColorMode: display.ColorModeRGB565,
		},
		ScaleX: 1, ScaleY: 1,
		Mode: display.TransModeBlocking,
	}
	if err := Validate(req); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	engine := New(1, testLogger())
	client, _ := engine.Register(display.ClientConfig{Operation: display.OperationSRM})
	if err := client.Transform(context.Background(), req); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got, want := unpack(dst), []uint16{0, 0, 0, e}; !reflect.DeepEqual(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	source := display.Resolution{Width: 4, Height: 2}
	valid := func() *display.SRMRequest {
		return display.NewSRMRequest(make([]byte, 16), make([]byte, 16), source,
			display.Orientation{Rotation: display.Rotate90})
	}

	tests := []struct {
		name   string
		mutate func(r *display.SRMRequest)
	}{
		{"input color mode", func(r *display.SRMRequest) { r.In.ColorMode = 0 }},
		{"output color mode", func(r *display.SRMRequest) { r.Out.ColorMode = 7 }},
		{"non-blocking", func(r *display.SRMRequest) { r.Mode = display.TransModeNonBlocking }},
		{"bad rotation", func(r *display.SRMRequest) { r.Rotation = 45 }},
		{"zero scale", func(r *display.SRMRequest) { r.ScaleX = 0 }},
		{"negative scale", func(r *display.SRMRequest) { r.ScaleY = -1 }},
		{"block outside picture", func(r *display.SRMRequest) { r.In.BlockOffsetX = 1 }},
		{"short input", func(r *display.SRMRequest) { r.In.Buffer = r.In.Buffer[:15] }},
		{"short output", func(r *display.SRMRequest) { r.Out.Buffer = r.Out.Buffer[:8] }},
		{"output not rotated", func(r *display.SRMRequest) { r.Out.PicWidth, r.Out.PicHeight = 4, 2 }},
		{"empty block", func(r *display.SRMRequest) { r.In.BlockWidth = 0 }},
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("Validate(valid) error = %v", err)
	}
	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) error = nil")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			if err := Validate(req); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestTransformLeavesOutputOnError(t *testing.T) {
	engine := New(1, testLogger())
	client, _ := engine.Register(display.ClientConfig{Operation: display.OperationSRM})

	dst := []byte{9, 9, 9, 9}
	req := display.NewSRMRequest(pixels(a, b), dst, display.Resolution{Width: 2, Height: 1}, display.Orientation{})
	req.Mode = display.TransModeNonBlocking
	if err := client.Transform(context.Background(), req); err == nil {
		t.Fatal("Transform() error = nil")
	}
	if !reflect.DeepEqual(dst, []byte{9, 9, 9, 9}) {
		t.Errorf("output modified on error: %v", dst)
	}
}

func TestTransformCanceledContext(t *testing.T) {
	engine := New(1, testLogger())
	client, _ := engine.Register(display.ClientConfig{Operation: display.OperationSRM})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := display.NewSRMRequest(pixels(a), make([]byte, 2), display.Resolution{Width: 1, Height: 1}, display.Orientation{})
	if err := client.Transform(ctx, req); !errors.Is(err, context.Canceled) {
		t.Errorf("Transform() error = %v, want context.Canceled", err)
	}
}

func TestRegister(t *testing.T) {
	engine := New(2, testLogger())

	if _, err := engine.Register(display.ClientConfig{Operation: "blend"}); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("Register(blend) error = %v, want ErrUnsupportedOperation", err)
	}

	c1, err := engine.Register(display.ClientConfig{Operation: display.OperationSRM})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := engine.Register(display.ClientConfig{Operation: display.OperationSRM}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := engine.Register(display.ClientConfig{Operation: display.OperationSRM}); !errors.Is(err, ErrNoFreeClient) {
		t.Errorf("Register() over limit error = %v, want ErrNoFreeClient", err)
	}
	if engine.Clients() != 2 {
		t.Errorf("Clients() = %d, want 2", engine.Clients())
	}

	if err := c1.Unregister(); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if err := c1.Unregister(); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("second Unregister() error = %v, want ErrNotRegistered", err)
	}
	if err := c1.Transform(context.Background(), &display.SRMRequest{}); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Transform() after Unregister error = %v, want ErrNotRegistered", err)
	}
	if engine.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", engine.Clients())
	}
}

func TestStats(t *testing.T) {
	engine := New(1, testLogger())
	client, _ := engine.Register(display.ClientConfig{Operation: display.OperationSRM})

	ok := display.NewSRMRequest(pixels(a, b), make([]byte, 4), display.Resolution{Width: 2, Height: 1}, display.Orientation{})
	bad := display.NewSRMRequest(pixels(a, b), make([]byte, 2), display.Resolution{Width: 2, Height: 1}, display.Orientation{})

	_ = client.Transform(context.Background(), ok)
	_ = client.Transform(context.Background(), ok)
	_ = client.Transform(context.Background(), bad)

	s := engine.Stats()
	if s.Transactions != 2 || s.Failures != 1 || s.Clients != 1 {
		t.Errorf("Stats() = %+v, want 2 transactions, 1 failure, 1 client", s)
	}
}
