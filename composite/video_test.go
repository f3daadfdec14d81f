package composite

import (
	"image/color"
	"testing"

	"github.com/harry-hain/moviepy/clip"
)

func solid(t *testing.T, w, h int, c color.RGBA, dur clip.Rational) *clip.VideoClip {
	t.Helper()
	v, err := clip.NewColor(w, h, c)
	if err != nil {
		t.Fatalf("NewColor: %v", err)
	}
	if !dur.IsZero() {
		if v, err = v.WithDuration(dur); err != nil {
			t.Fatalf("WithDuration: %v", err)
		}
	}
	return v
}

func frameAt(t *testing.T, v *clip.VideoClip, ts float64) *clip.Frame {
	t.Helper()
	f, err := v.GetFrame(ts)
	if err != nil {
		t.Fatalf("GetFrame(%v): %v", ts, err)
	}
	return f
}

// Two full-frame solid clips, blue painted on top at full opacity: every
// pixel at every sampled frame must be blue.
func TestFullFrameTopLayerWins(t *testing.T) {
	red := solid(t, 100, 100, color.RGBA{R: 255}, clip.Seconds(2))
	blue := solid(t, 100, 100, color.RGBA{B: 255}, clip.Seconds(2))

	comp, err := Video([]Layer{{Clip: red}, {Clip: blue}}, Options{})
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	if comp.Duration().Cmp(clip.Seconds(2)) != 0 {
		t.Fatalf("duration = %s, want 2s", comp.Duration())
	}
	for i := 0; i < 20; i++ { // sample at 10fps
		f := frameAt(t, comp, float64(i)/10)
		for p := 0; p < len(f.Pix); p += 3 {
			if f.Pix[p] != 0 || f.Pix[p+1] != 0 || f.Pix[p+2] != 255 {
				t.Fatalf("frame %d pixel %d = (%d,%d,%d), want blue",
					i, p/3, f.Pix[p], f.Pix[p+1], f.Pix[p+2])
			}
		}
	}
}

func TestPaintOrder(t *testing.T) {
	canvas := Options{Width: 20, Height: 10, Duration: clip.Seconds(1)}
	left := solid(t, 10, 10, color.RGBA{R: 255}, clip.Rational{}).WithPosition(clip.At(0, 0))
	right := solid(t, 10, 10, color.RGBA{G: 255}, clip.Rational{}).WithPosition(clip.At(10, 0))

	// Opaque, spatially disjoint: order must not matter.
	a, err := Video([]Layer{{Clip: left}, {Clip: right}}, canvas)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	b, err := Video([]Layer{{Clip: right}, {Clip: left}}, canvas)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	fa, fb := frameAt(t, a, 0.5), frameAt(t, b, 0.5)
	for i := range fa.Pix {
		if fa.Pix[i] != fb.Pix[i] {
			t.Fatalf("disjoint layers differ at byte %d after reordering", i)
		}
	}

	// Overlapping: order must matter.
	overA := solid(t, 20, 10, color.RGBA{R: 255}, clip.Rational{})
	overB := solid(t, 20, 10, color.RGBA{G: 255}, clip.Rational{})
	ab, err := Video([]Layer{{Clip: overA}, {Clip: overB}}, canvas)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	ba, err := Video([]Layer{{Clip: overB}, {Clip: overA}}, canvas)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	fab, fba := frameAt(t, ab, 0.5), frameAt(t, ba, 0.5)
	if fab.Pix[1] != 255 || fba.Pix[0] != 255 {
		t.Error("overlapping layers: paint order had no effect")
	}
}

func TestLayerIndexOverridesSliceOrder(t *testing.T) {
	bottom := solid(t, 10, 10, color.RGBA{R: 255}, clip.Rational{}).WithLayer(1)
	top := solid(t, 10, 10, color.RGBA{B: 255}, clip.Rational{})
	// top is listed second but bottom's higher layer index wins.
	comp, err := Video([]Layer{{Clip: top}, {Clip: bottom}}, Options{
		Width: 10, Height: 10, Duration: clip.Seconds(1),
	})
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	f := frameAt(t, comp, 0)
	if f.Pix[0] != 255 {
		t.Errorf("pixel = (%d,%d,%d), want red on top", f.Pix[0], f.Pix[1], f.Pix[2])
	}
}

func TestHalfOpacityBlend(t *testing.T) {
	bg := solid(t, 4, 4, color.RGBA{}, clip.Seconds(1))
	white := solid(t, 4, 4, color.RGBA{R: 255, G: 255, B: 255}, clip.Seconds(1))
	half, err := white.WithOpacity(0.5)
	if err != nil {
		t.Fatalf("WithOpacity: %v", err)
	}
	comp, err := Video([]Layer{{Clip: bg}, {Clip: half}}, Options{})
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	f := frameAt(t, comp, 0.5)
	// 255 * (128/255) over black = 128.
	if f.Pix[0] != 128 {
		t.Errorf("blended value = %d, want 128", f.Pix[0])
	}
}

func TestInactiveLayerYieldsBackground(t *testing.T) {
	late := solid(t, 10, 10, color.RGBA{G: 255}, clip.Seconds(1))
	comp, err := Video([]Layer{{Clip: late, Start: clip.Seconds(2)}}, Options{
		Width: 10, Height: 10,
		Duration:   clip.Seconds(4),
		Background: color.RGBA{R: 7, G: 8, B: 9},
		Truncate:   true,
	})
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	before := frameAt(t, comp, 1.0)
	if before.Pix[0] != 7 || before.Pix[1] != 8 || before.Pix[2] != 9 {
		t.Errorf("before layer start: (%d,%d,%d), want background",
			before.Pix[0], before.Pix[1], before.Pix[2])
	}
	during := frameAt(t, comp, 2.5)
	if during.Pix[1] != 255 {
		t.Error("layer not painted during its window")
	}
	after := frameAt(t, comp, 3.5)
	if after.Pix[0] != 7 || after.Pix[1] != 8 || after.Pix[2] != 9 {
		t.Errorf("past layer end: (%d,%d,%d), want background",
			after.Pix[0], after.Pix[1], after.Pix[2])
	}
}

func TestOverrunRejectedWithoutTruncate(t *testing.T) {
	long := solid(t, 4, 4, color.RGBA{}, clip.Seconds(5))
	_, err := Video([]Layer{{Clip: long}}, Options{Duration: clip.Seconds(2)})
	if err == nil {
		t.Fatal("expected overrun error without Truncate")
	}
	if _, err := Video([]Layer{{Clip: long}}, Options{Duration: clip.Seconds(2), Truncate: true}); err != nil {
		t.Fatalf("Truncate should allow overrun: %v", err)
	}
}

func TestPositionAlignment(t *testing.T) {
	dot := solid(t, 2, 2, color.RGBA{R: 255}, clip.Rational{})
	comp, err := Video([]Layer{{Clip: dot.WithPosition(clip.Centered())}}, Options{
		Width: 10, Height: 10, Duration: clip.Seconds(1),
	})
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	f := frameAt(t, comp, 0)
	if f.Pix[f.Offset(4, 4)] != 255 {
		t.Error("centered clip not at (4,4)")
	}
	if f.Pix[f.Offset(0, 0)] != 0 {
		t.Error("centered clip leaked to the corner")
	}
}

func TestArrayGrid(t *testing.T) {
	r := solid(t, 4, 4, color.RGBA{R: 255}, clip.Seconds(1))
	g := solid(t, 4, 4, color.RGBA{G: 255}, clip.Seconds(1))
	b := solid(t, 4, 4, color.RGBA{B: 255}, clip.Seconds(1))
	w := solid(t, 4, 4, color.RGBA{R: 255, G: 255, B: 255}, clip.Seconds(1))

	grid, err := Array([][]*clip.VideoClip{{r, g}, {b, w}}, Options{})
	if err != nil {
		t.Fatalf("Array: %v", err)
	}
	if gw, gh := grid.Size(); gw != 8 || gh != 8 {
		t.Fatalf("grid size = %dx%d, want 8x8", gw, gh)
	}
	f := frameAt(t, grid, 0.5)
	checks := []struct {
		x, y    int
		r, g, b uint8
	}{
		{1, 1, 255, 0, 0},
		{5, 1, 0, 255, 0},
		{1, 5, 0, 0, 255},
		{5, 5, 255, 255, 255},
	}
	for _, c := range checks {
		i := f.Offset(c.x, c.y)
		if f.Pix[i] != c.r || f.Pix[i+1] != c.g || f.Pix[i+2] != c.b {
			t.Errorf("cell pixel (%d,%d) = (%d,%d,%d), want (%d,%d,%d)",
				c.x, c.y, f.Pix[i], f.Pix[i+1], f.Pix[i+2], c.r, c.g, c.b)
		}
	}
}
