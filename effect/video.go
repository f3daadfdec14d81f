// Package effect provides pure, composable clip transformations. Every
// effect returns a new clip wrapping the parent's frame function; parents are
// never modified, and effects must not assume frames are requested in
// monotonic time order.
package effect

import (
	"fmt"
	"image/color"
	"math"

	"github.com/nfnt/resize"

	"github.com/harry-hain/moviepy/clip"
)

// Video transforms one video clip into another.
type Video func(c *clip.VideoClip) (*clip.VideoClip, error)

// Audio transforms one audio clip into another.
type Audio func(a *clip.AudioClip) (*clip.AudioClip, error)

// Chain composes effects left to right.
func Chain(fx ...Video) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		var err error
		for _, f := range fx {
			if c, err = f(c); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
}

// Apply runs the effects on the clip, returning the final derived clip.
func Apply(c *clip.VideoClip, fx ...Video) (*clip.VideoClip, error) {
	return Chain(fx...)(c)
}

// Resize scales every frame to w x h using Lanczos resampling. The mask, if
// any, is resized in step so it keeps matching the clip.
func Resize(w, h int) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("resize: invalid size %dx%d", w, h)
		}
		out := c.ImageTransform(func(f *clip.Frame) *clip.Frame {
			return ResampleFrame(f, w, h)
		}).WithSize(w, h)
		if m := out.Mask(); m != nil {
			resized, err := Apply(m, Resize(w, h))
			if err != nil {
				return nil, err
			}
			out, err = out.WithMask(resized)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// Scale resizes by a uniform factor.
func Scale(factor float64) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if factor <= 0 {
			return nil, fmt.Errorf("scale: invalid factor %v", factor)
		}
		w, h := c.Size()
		return Apply(c, Resize(int(math.Round(float64(w)*factor)), int(math.Round(float64(h)*factor))))
	}
}

// ResampleFrame rescales a single frame with Lanczos filtering, preserving
// the channel layout. Exposed for the compositor, which resamples masks to
// the clip they modulate.
func ResampleFrame(f *clip.Frame, w, h int) *clip.Frame {
	if f.W == w && f.H == h {
		return f
	}
	img := resize.Resize(uint(w), uint(h), f.ToImage(), resize.Lanczos3)
	return clip.FrameFromImage(img, f.Channels)
}

// Crop keeps the rectangle (x1,y1)-(x2,y2) of every frame.
func Crop(x1, y1, x2, y2 int) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		w, h := c.Size()
		if x1 < 0 || y1 < 0 || x2 > w || y2 > h || x1 >= x2 || y1 >= y2 {
			return nil, fmt.Errorf("crop: rectangle (%d,%d)-(%d,%d) outside %dx%d clip", x1, y1, x2, y2, w, h)
		}
		cw, ch := x2-x1, y2-y1
		out := c.ImageTransform(func(f *clip.Frame) *clip.Frame {
			dst := clip.NewFrame(cw, ch, f.Channels)
			for y := 0; y < ch; y++ {
				src := f.Offset(x1, y1+y)
				copy(dst.Pix[y*cw*f.Channels:(y+1)*cw*f.Channels], f.Pix[src:src+cw*f.Channels])
			}
			return dst
		}).WithSize(cw, ch)
		if m := out.Mask(); m != nil {
			cropped, err := Apply(m, Crop(x1, y1, x2, y2))
			if err != nil {
				return nil, err
			}
			out, err = out.WithMask(cropped)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// MirrorX flips frames horizontally.
func MirrorX() Video {
	return pixelShuffle(func(f *clip.Frame, x, y int) (int, int) {
		return f.W - 1 - x, y
	})
}

// MirrorY flips frames vertically.
func MirrorY() Video {
	return pixelShuffle(func(f *clip.Frame, x, y int) (int, int) {
		return x, f.H - 1 - y
	})
}

// Rotate180 rotates frames half a turn.
func Rotate180() Video {
	return pixelShuffle(func(f *clip.Frame, x, y int) (int, int) {
		return f.W - 1 - x, f.H - 1 - y
	})
}

func pixelShuffle(srcFor func(f *clip.Frame, x, y int) (int, int)) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		return c.ImageTransform(func(f *clip.Frame) *clip.Frame {
			dst := clip.NewFrame(f.W, f.H, f.Channels)
			for y := 0; y < f.H; y++ {
				for x := 0; x < f.W; x++ {
					sx, sy := srcFor(f, x, y)
					si, di := f.Offset(sx, sy), dst.Offset(x, y)
					copy(dst.Pix[di:di+f.Channels], f.Pix[si:si+f.Channels])
				}
			}
			return dst
		}), nil
	}
}

// BlackWhite converts frames to luminance grayscale (Rec. 601 weights).
func BlackWhite() Video {
	return perPixelRGB(func(r, g, b float64) (float64, float64, float64) {
		l := 0.299*r + 0.587*g + 0.114*b
		return l, l, l
	})
}

// InvertColors inverts every channel.
func InvertColors() Video {
	return perPixelRGB(func(r, g, b float64) (float64, float64, float64) {
		return 255 - r, 255 - g, 255 - b
	})
}

// Gamma applies gamma correction.
func Gamma(gamma float64) Video {
	return perPixelRGB(func(r, g, b float64) (float64, float64, float64) {
		f := func(v float64) float64 { return 255 * math.Pow(v/255, gamma) }
		return f(r), f(g), f(b)
	})
}

func perPixelRGB(fn func(r, g, b float64) (float64, float64, float64)) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		return c.ImageTransform(func(f *clip.Frame) *clip.Frame {
			out := f.Clone()
			step := f.Channels
			if step < 3 {
				return out
			}
			for i := 0; i+2 < len(out.Pix); i += step {
				r, g, b := fn(float64(out.Pix[i]), float64(out.Pix[i+1]), float64(out.Pix[i+2]))
				out.Pix[i] = roundByte(r)
				out.Pix[i+1] = roundByte(g)
				out.Pix[i+2] = roundByte(b)
			}
			return out
		}), nil
	}
}

// FadeIn ramps the frame from black over the first d seconds. The attached
// audio, if any, fades in over the same window.
func FadeIn(d clip.Rational) Video {
	return fade(d, func(t, dur, fd float64) float64 {
		if t >= fd {
			return 1
		}
		return t / fd
	}, true)
}

// FadeOut ramps the frame to black over the last d seconds. Requires a
// bounded clip.
func FadeOut(d clip.Rational) Video {
	return fade(d, func(t, dur, fd float64) float64 {
		if t <= dur-fd {
			return 1
		}
		return (dur - t) / fd
	}, false)
}

func fade(d clip.Rational, gain func(t, dur, fd float64) float64, fromStart bool) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if !fromStart && c.Unbounded() {
			return nil, fmt.Errorf("fade out: clip has no duration")
		}
		fd := d.Seconds()
		dur := c.Duration().Seconds()
		parent := c
		out := c.WithFrameFunc(func(t float64) (*clip.Frame, error) {
			f, err := parent.GetFrame(t)
			if err != nil {
				return nil, err
			}
			g := gain(t, dur, fd)
			if g >= 1 {
				return f, nil
			}
			scaled := f.Clone()
			for i := range scaled.Pix {
				scaled.Pix[i] = roundByte(float64(scaled.Pix[i]) * g)
			}
			return scaled, nil
		})
		if a := out.Audio(); a != nil {
			fader := AudioFadeIn(d)
			if !fromStart {
				fader = AudioFadeOut(d)
			}
			fa, err := fader(a)
			if err != nil {
				return nil, err
			}
			out = out.WithAudio(fa)
		}
		return out, nil
	}
}

// Margin pads every frame with a colored border of m pixels.
func Margin(m int, col color.RGBA) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if m < 0 {
			return nil, fmt.Errorf("margin: negative width %d", m)
		}
		w, h := c.Size()
		nw, nh := w+2*m, h+2*m
		out := c.ImageTransform(func(f *clip.Frame) *clip.Frame {
			var dst *clip.Frame
			if f.Channels == clip.ChannelsMask {
				dst = clip.NewFrame(nw, nh, f.Channels)
			} else {
				dst = clip.NewColorFrame(nw, nh, col)
			}
			for y := 0; y < f.H; y++ {
				src := f.Offset(0, y)
				di := dst.Offset(m, m+y)
				copy(dst.Pix[di:di+f.W*f.Channels], f.Pix[src:src+f.W*f.Channels])
			}
			return dst
		}).WithSize(nw, nh)
		if mask := out.Mask(); mask != nil {
			padded, err := Apply(mask, Margin(m, color.RGBA{}))
			if err != nil {
				return nil, err
			}
			out, err = out.WithMask(padded)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// Speed changes playback speed by factor k: the new duration is duration/k
// and the frame at time t comes from the parent at t*k. Mask and audio are
// remapped identically, keeping the whole clip consistent.
func Speed(k float64) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if k <= 0 {
			return nil, fmt.Errorf("speed: invalid factor %v", k)
		}
		span := c.Span()
		if !span.Unbounded {
			span = clip.TimeSpan{Duration: c.Duration().DivFloat(k)}
		}
		return c.TimeTransform(func(t float64) float64 { return t * k }, span), nil
	}
}

// Freeze holds the frame at time t for freezeDuration, extending the clip.
func Freeze(at, freezeDuration clip.Rational) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if c.Unbounded() {
			return nil, fmt.Errorf("freeze: clip has no duration")
		}
		if at.IsNegative() || at.Cmp(c.Duration()) > 0 {
			return nil, &clip.OutOfRangeError{T: at.Seconds(), Duration: c.Duration()}
		}
		tf, fd := at.Seconds(), freezeDuration.Seconds()
		span := clip.TimeSpan{Duration: c.Duration().Add(freezeDuration)}
		return c.TimeTransform(func(t float64) float64 {
			switch {
			case t < tf:
				return t
			case t < tf+fd:
				return tf
			default:
				return t - fd
			}
		}, span), nil
	}
}

// Loop repeats the clip n times.
func Loop(n int) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		if n < 1 {
			return nil, fmt.Errorf("loop: count %d < 1", n)
		}
		if c.Unbounded() {
			return nil, fmt.Errorf("loop: clip has no duration")
		}
		dur := c.Duration().Seconds()
		span := clip.TimeSpan{Duration: c.Duration().MulInt(int64(n))}
		return c.TimeTransform(func(t float64) float64 {
			return math.Mod(t, dur)
		}, span), nil
	}
}

// OnColor flattens the clip onto a colored background canvas of the given
// size, centered. Useful for giving transparent clips a solid backdrop.
func OnColor(w, h int, col color.RGBA) Video {
	return func(c *clip.VideoClip) (*clip.VideoClip, error) {
		parent := c
		cw, ch := c.Size()
		x, y := (w-cw)/2, (h-ch)/2
		out := c.WithFrameFunc(func(t float64) (*clip.Frame, error) {
			canvas := clip.NewColorFrame(w, h, col)
			f, err := parent.GetFrame(t)
			if err != nil {
				return nil, err
			}
			var mf *clip.Frame
			if m := parent.Mask(); m != nil {
				if mf, err = m.GetFrame(t); err != nil {
					return nil, err
				}
				if mf.W != f.W || mf.H != f.H {
					mf = ResampleFrame(mf, f.W, f.H)
				}
			}
			Blit(canvas, f, x, y, mf)
			return canvas, nil
		}).WithSize(w, h)
		return out.WithMask(nil)
	}
}

// Blit draws src over dst at (x, y) with standard "over" compositing, using
// mask (single channel, src-sized) as per-pixel alpha; nil means opaque.
// Shared with the composite package.
func Blit(dst, src *clip.Frame, x, y int, mask *clip.Frame) {
	for sy := 0; sy < src.H; sy++ {
		dy := y + sy
		if dy < 0 || dy >= dst.H {
			continue
		}
		for sx := 0; sx < src.W; sx++ {
			dx := x + sx
			if dx < 0 || dx >= dst.W {
				continue
			}
			alpha := 1.0
			if mask != nil {
				alpha = float64(mask.Pix[sy*mask.W+sx]) / 255
			}
			if alpha <= 0 {
				continue
			}
			si, di := src.Offset(sx, sy), dst.Offset(dx, dy)
			n := dst.Channels
			if src.Channels < n {
				n = src.Channels
			}
			for ch := 0; ch < n; ch++ {
				fg := float64(src.Pix[si+ch])
				bg := float64(dst.Pix[di+ch])
				dst.Pix[di+ch] = roundByte(fg*alpha + bg*(1-alpha))
			}
		}
	}
}

func roundByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
