package clip

import (
	"errors"
	"image/color"
	"testing"
)

func solidClip(t *testing.T, w, h int, c color.RGBA, dur Rational) *VideoClip {
	t.Helper()
	v, err := NewColor(w, h, c)
	if err != nil {
		t.Fatalf("NewColor: %v", err)
	}
	v, err = v.WithDuration(dur)
	if err != nil {
		t.Fatalf("WithDuration: %v", err)
	}
	return v
}

// timeStampClip produces frames whose first byte encodes floor(t*10), so
// tests can verify which instant a frame came from.
func timeStampClip(t *testing.T, dur Rational) *VideoClip {
	t.Helper()
	v, err := NewVideo(func(ts float64) (*Frame, error) {
		f := NewFrame(2, 2, ChannelsRGB)
		f.Pix[0] = uint8(ts * 10)
		return f, nil
	}, 2, 2, TimeSpan{Duration: dur})
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	return v
}

func TestColorClipFrames(t *testing.T) {
	red := color.RGBA{R: 255}
	v := solidClip(t, 4, 3, red, Seconds(1))

	f, err := v.GetFrame(0.5)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if f.W != 4 || f.H != 3 || f.Channels != ChannelsRGB {
		t.Fatalf("frame geometry = %dx%dx%d, want 4x3x3", f.W, f.H, f.Channels)
	}
	for i := 0; i < len(f.Pix); i += 3 {
		if f.Pix[i] != 255 || f.Pix[i+1] != 0 || f.Pix[i+2] != 0 {
			t.Fatalf("pixel %d = (%d,%d,%d), want (255,0,0)", i/3, f.Pix[i], f.Pix[i+1], f.Pix[i+2])
		}
	}
}

func TestSubclipRoundTrip(t *testing.T) {
	v := timeStampClip(t, Seconds(3))
	sub, err := v.Subclip(Seconds(0), v.Duration())
	if err != nil {
		t.Fatalf("Subclip: %v", err)
	}
	if sub.Duration().Cmp(v.Duration()) != 0 {
		t.Errorf("subclip duration = %s, want %s", sub.Duration(), v.Duration())
	}
	for _, ts := range []float64{0, 0.7, 1.5, 2.9} {
		want, err := v.GetFrame(ts)
		if err != nil {
			t.Fatalf("original GetFrame(%v): %v", ts, err)
		}
		got, err := sub.GetFrame(ts)
		if err != nil {
			t.Fatalf("subclip GetFrame(%v): %v", ts, err)
		}
		if got.Pix[0] != want.Pix[0] {
			t.Errorf("t=%v: subclip frame %d, original %d", ts, got.Pix[0], want.Pix[0])
		}
	}
}

func TestSubclipOffset(t *testing.T) {
	v := timeStampClip(t, Seconds(3))
	sub, err := v.Subclip(Seconds(1), Seconds(3))
	if err != nil {
		t.Fatalf("Subclip: %v", err)
	}
	if sub.Duration().Cmp(Seconds(2)) != 0 {
		t.Errorf("duration = %s, want 2s", sub.Duration())
	}
	got, err := sub.GetFrame(0.5)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if got.Pix[0] != 15 {
		t.Errorf("subclip t=0.5 maps to stamp %d, want 15 (t=1.5)", got.Pix[0])
	}
}

func TestSubclipBeyondDuration(t *testing.T) {
	v := timeStampClip(t, Seconds(3))
	_, err := v.Subclip(Seconds(1), Seconds(4))
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("err = %v, want OutOfRangeError", err)
	}
}

func TestBoundaryPolicies(t *testing.T) {
	v := timeStampClip(t, Seconds(2))

	// Clamp (default): t = duration freezes the last frame.
	f, err := v.GetFrame(2.0)
	if err != nil {
		t.Fatalf("clamp GetFrame(duration): %v", err)
	}
	if f.Pix[0] != 19 {
		t.Errorf("clamped stamp = %d, want 19 (just inside 2s)", f.Pix[0])
	}

	// Strict: t = duration fails.
	strict := v.WithPolicy(Strict)
	_, err = strict.GetFrame(2.0)
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("strict err = %v, want OutOfRangeError", err)
	}
	if _, err := strict.GetFrame(1.999); err != nil {
		t.Errorf("strict GetFrame inside span: %v", err)
	}
}

func TestDerivationDoesNotMutateParent(t *testing.T) {
	v := solidClip(t, 2, 2, color.RGBA{R: 9}, Seconds(2))
	derived := v.WithLayer(5)
	if v.Layer() != 0 {
		t.Error("parent layer mutated")
	}
	if derived.Layer() != 5 {
		t.Error("derived layer not set")
	}
	sub, err := v.Subclip(Seconds(0), Seconds(1))
	if err != nil {
		t.Fatalf("Subclip: %v", err)
	}
	if v.Duration().Cmp(Seconds(2)) != 0 {
		t.Error("parent duration mutated by subclip")
	}
	if sub.Duration().Cmp(Seconds(1)) != 0 {
		t.Error("subclip duration wrong")
	}
}

func TestWithOpacity(t *testing.T) {
	v := solidClip(t, 2, 2, color.RGBA{R: 1}, Seconds(1))
	half, err := v.WithOpacity(0.5)
	if err != nil {
		t.Fatalf("WithOpacity: %v", err)
	}
	if half.Mask() == nil {
		t.Fatal("expected mask to be created")
	}
	mf, err := half.Mask().GetFrame(0)
	if err != nil {
		t.Fatalf("mask GetFrame: %v", err)
	}
	if mf.Channels != ChannelsMask {
		t.Fatalf("mask channels = %d, want 1", mf.Channels)
	}
	if mf.Pix[0] != 128 {
		t.Errorf("mask value = %d, want 128", mf.Pix[0])
	}
	if v.Mask() != nil {
		t.Error("parent gained a mask")
	}
}

func TestMaskKindEnforced(t *testing.T) {
	v := solidClip(t, 2, 2, color.RGBA{}, Seconds(1))
	notMask := solidClip(t, 2, 2, color.RGBA{}, Seconds(1))
	_, err := v.WithMask(notMask)
	var fm *FormatMismatchError
	if !errors.As(err, &fm) {
		t.Fatalf("err = %v, want FormatMismatchError", err)
	}
}
