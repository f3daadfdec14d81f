// Package rasterize builds leaf clips from non-media sources: text rendered
// with a bitmap font and still images decoded from disk.
package rasterize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/harry-hain/moviepy/clip"
)

// TextOptions styles a rendered text clip.
type TextOptions struct {
	Color      color.RGBA // default white
	Background color.RGBA // zero alpha keeps the background transparent
	Padding    int
}

// Text rasterizes a string into a still clip sized to fit it. Lines split on
// newline. With a transparent background the glyph coverage becomes the
// clip's mask, so text composites cleanly over other clips.
func Text(text string, opts TextOptions) (*clip.VideoClip, error) {
	if text == "" {
		return nil, fmt.Errorf("rasterize: empty text")
	}
	if opts.Color == (color.RGBA{}) {
		opts.Color = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}

	face := basicfont.Face7x13
	lines := strings.Split(text, "\n")
	var widest fixed.Int26_6
	for _, line := range lines {
		if w := font.MeasureString(face, line); w > widest {
			widest = w
		}
	}
	w := widest.Ceil() + 2*opts.Padding
	h := len(lines)*face.Height + 2*opts.Padding
	if w <= 2*opts.Padding {
		return nil, fmt.Errorf("rasterize: text has no width")
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if opts.Background.A > 0 {
		draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(opts.Color),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(opts.Padding, opts.Padding+face.Ascent+i*face.Height)
		d.DrawString(line)
	}
	return clip.NewImage(img)
}

// ImageFile decodes a still image from disk into an unbounded clip. Formats:
// png, jpeg, gif. Alpha, when present, becomes the clip's mask.
func ImageFile(path string) (*clip.VideoClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &clip.ResourceError{Op: "open image", Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &clip.ResourceError{Op: "decode image", Path: path, Err: err}
	}
	return clip.NewImage(img)
}
