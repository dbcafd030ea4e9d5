package display

import "testing"

func TestOrientationEffective(t *testing.T) {
	src := Resolution{Width: 1280, Height: 720}

	tests := []struct {
		rotation Rotation
		want     Resolution
	}{
		{Rotate0, Resolution{Width: 1280, Height: 720}},
		{Rotate90, Resolution{Width: 720, Height: 1280}},
		{Rotate180, Resolution{Width: 1280, Height: 720}},
		{Rotate270, Resolution{Width: 720, Height: 1280}},
	}

	for _, tt := range tests {
		t.Run(tt.rotation.String(), func(t *testing.T) {
			for _, mirror := range []bool{false, true} {
				o := Orientation{Rotation: tt.rotation, MirrorX: mirror, MirrorY: !mirror}
				if got := o.Effective(src); got != tt.want {
					t.Errorf("Effective(%v) = %v, want %v", src, got, tt.want)
				}
			}
		})
	}
}

func TestOrientationIsIdentity(t *testing.T) {
	tests := []struct {
		name string
		o    Orientation
		want bool
	}{
		{"zero value", Orientation{}, true},
		{"rotation only", Orientation{Rotation: Rotate180}, false},
		{"mirror x", Orientation{MirrorX: true}, false},
		{"mirror y", Orientation{MirrorY: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.IsIdentity(); got != tt.want {
				t.Errorf("IsIdentity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRotation(t *testing.T) {
	for _, deg := range []int{0, 90, 180, 270} {
		r, err := ParseRotation(deg)
		if err != nil {
			t.Errorf("ParseRotation(%d) returned error: %v", deg, err)
		}
		if int(r) != deg {
			t.Errorf("ParseRotation(%d) = %d", deg, r)
		}
	}

	for _, deg := range []int{-90, 45, 360} {
		_, err := ParseRotation(deg)
		if !IsCode(err, ErrCodeInvalidConfig) {
			t.Errorf("ParseRotation(%d) error = %v, want %s", deg, err, ErrCodeInvalidConfig)
		}
	}
}

func TestResolutionFrameSize(t *testing.T) {
	if got := (Resolution{Width: 1280, Height: 720}).FrameSize(); got != 1280*720*2 {
		t.Errorf("FrameSize() = %d, want %d", got, 1280*720*2)
	}
	if (Resolution{Width: 0, Height: 720}).Valid() {
		t.Error("zero width should not be valid")
	}
}
