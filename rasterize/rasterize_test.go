package rasterize

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestTextRendersInk(t *testing.T) {
	c, err := Text("hello", TextOptions{Padding: 2})
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	w, h := c.Size()
	if w <= 4 || h <= 4 {
		t.Fatalf("size = %dx%d, want room for glyphs plus padding", w, h)
	}
	if c.Mask() == nil {
		t.Fatal("transparent-background text has no mask")
	}

	mf, err := c.Mask().GetFrame(0)
	if err != nil {
		t.Fatalf("mask GetFrame: %v", err)
	}
	var ink int
	for _, v := range mf.Pix {
		if v > 0 {
			ink++
		}
	}
	if ink == 0 {
		t.Error("mask has no glyph coverage")
	}
	if ink == len(mf.Pix) {
		t.Error("mask is fully opaque; padding should be transparent")
	}
}

func TestTextOpaqueBackground(t *testing.T) {
	c, err := Text("x", TextOptions{
		Background: color.RGBA{R: 10, G: 20, B: 30, A: 255},
	})
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if c.Mask() != nil {
		t.Error("opaque-background text should not carry a mask")
	}
	f, err := c.GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	// Top-left corner is background.
	if f.Pix[0] != 10 || f.Pix[1] != 20 || f.Pix[2] != 30 {
		t.Errorf("corner = (%d, %d, %d), want background", f.Pix[0], f.Pix[1], f.Pix[2])
	}
}

func TestTextMultiline(t *testing.T) {
	one, err := Text("a", TextOptions{})
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	two, err := Text("a\nb", TextOptions{})
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	_, h1 := one.Size()
	_, h2 := two.Size()
	if h2 != 2*h1 {
		t.Errorf("two-line height = %d, want %d", h2, 2*h1)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	if _, err := Text("", TextOptions{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestImageFile(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})
	img.SetRGBA(2, 1, color.RGBA{B: 150, A: 255})
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f.Close()

	c, err := ImageFile(path)
	if err != nil {
		t.Fatalf("ImageFile: %v", err)
	}
	if w, h := c.Size(); w != 3 || h != 2 {
		t.Fatalf("size = %dx%d, want 3x2", w, h)
	}
	if !c.Unbounded() {
		t.Error("still image clip should be unbounded")
	}
	frame, err := c.GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if frame.Pix[frame.Offset(0, 0)] != 200 {
		t.Errorf("pixel (0,0) red = %d, want 200", frame.Pix[frame.Offset(0, 0)])
	}
}

func TestImageFileMissing(t *testing.T) {
	if _, err := ImageFile(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
