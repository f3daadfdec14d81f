package clip

import (
	"fmt"
	"image"
	"image/color"
	"io"
)

// Policy controls what happens when a frame is requested outside a clip's
// timespan.
type Policy int

const (
	// Clamp freezes the nearest valid frame (video) or fills with silence
	// (audio). This is the default: it matches how most editors behave when
	// a shorter track is held under a longer one.
	Clamp Policy = iota
	// Strict fails with OutOfRangeError instead.
	Strict
)

// FrameFunc produces the frame at local time t (seconds). It must be pure:
// same t, same frame, regardless of call order.
type FrameFunc func(t float64) (*Frame, error)

// PositionFunc resolves a clip's placement at local time t when composited.
type PositionFunc func(t float64) Position

// Align positions a clip edge-relative on a canvas axis.
type Align int

const (
	AlignNone Align = iota // use the coordinate as absolute pixels
	AlignStart
	AlignCenter
	AlignEnd
)

// Position places a clip's top-left corner on a composite canvas. When an
// axis has an alignment other than AlignNone the coordinate on that axis is
// ignored. Relative interprets X and Y as fractions of the canvas size.
type Position struct {
	X, Y     float64
	XAlign   Align
	YAlign   Align
	Relative bool
}

// Centered is the position used when none is set.
func Centered() Position {
	return Position{XAlign: AlignCenter, YAlign: AlignCenter}
}

// At positions the clip at absolute pixel coordinates.
func At(x, y float64) Position {
	return Position{X: x, Y: y}
}

// VideoClip is an immutable timeline object: a timespan plus a pure function
// from time to raster frame. Every transformation returns a new clip wrapping
// the parent's frame function by closure; parents are shared, never mutated,
// so one source clip can feed several composite branches (a DAG, not a tree).
type VideoClip struct {
	frameFunc FrameFunc
	span      TimeSpan
	w, h      int
	isMask    bool
	mask      *VideoClip
	audio     *AudioClip
	pos       PositionFunc
	layer     int
	policy    Policy
	closer    io.Closer
}

// NewVideo builds a video clip from a frame function. Duration may be the
// zero Rational together with unbounded=true for procedural clips whose
// length is inherited from the composition they are used in.
func NewVideo(frameFunc FrameFunc, w, h int, span TimeSpan) (*VideoClip, error) {
	if frameFunc == nil {
		return nil, fmt.Errorf("clip: nil frame function")
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("clip: invalid size %dx%d", w, h)
	}
	if span.Duration.IsNegative() {
		return nil, fmt.Errorf("clip: negative duration %s", span.Duration)
	}
	return &VideoClip{frameFunc: frameFunc, span: span, w: w, h: h}, nil
}

// NewColor returns a solid-color clip with no intrinsic end.
func NewColor(w, h int, c color.RGBA) (*VideoClip, error) {
	return NewVideo(func(t float64) (*Frame, error) {
		return NewColorFrame(w, h, c), nil
	}, w, h, UnboundedSpan())
}

// NewMask returns a uniform single-channel opacity clip with no intrinsic end.
func NewMask(w, h int, opacity float64) (*VideoClip, error) {
	v, err := NewVideo(func(t float64) (*Frame, error) {
		return NewMaskFrame(w, h, opacity), nil
	}, w, h, UnboundedSpan())
	if err != nil {
		return nil, err
	}
	v.isMask = true
	return v, nil
}

// NewImage returns a still clip displaying the given image at all times.
// Images with an alpha channel get that channel attached as the clip's mask.
func NewImage(img image.Image) (*VideoClip, error) {
	frame := FrameFromImage(img, ChannelsRGB)
	v, err := NewVideo(func(t float64) (*Frame, error) {
		return frame, nil
	}, frame.W, frame.H, UnboundedSpan())
	if err != nil {
		return nil, err
	}
	if hasAlpha(img) {
		alpha := FrameFromImage(img, ChannelsMask)
		mask, err := NewVideo(func(t float64) (*Frame, error) {
			return alpha, nil
		}, alpha.W, alpha.H, UnboundedSpan())
		if err != nil {
			return nil, err
		}
		mask.isMask = true
		v.mask = mask
	}
	return v, nil
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return !img.Bounds().Empty() && !opaque(img)
	default:
		return false
	}
}

func opaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	return true
}

// Size returns the clip's raster dimensions.
func (c *VideoClip) Size() (w, h int) { return c.w, c.h }

// Span returns the clip's timespan.
func (c *VideoClip) Span() TimeSpan { return c.span }

// Duration returns the clip's duration. Zero for unbounded clips.
func (c *VideoClip) Duration() Rational { return c.span.Duration }

// Unbounded reports whether the clip has an intrinsic end.
func (c *VideoClip) Unbounded() bool { return c.span.Unbounded }

// IsMask reports whether the clip is a single-channel opacity clip.
func (c *VideoClip) IsMask() bool { return c.isMask }

// Mask returns the attached opacity clip, or nil when fully opaque.
func (c *VideoClip) Mask() *VideoClip { return c.mask }

// Audio returns the attached audio track, or nil.
func (c *VideoClip) Audio() *AudioClip { return c.audio }

// Layer returns the compositing layer index; higher paints on top.
func (c *VideoClip) Layer() int { return c.layer }

// Position resolves the clip's compositing position at time t.
func (c *VideoClip) Position(t float64) Position {
	if c.pos == nil {
		return Position{}
	}
	return c.pos(t)
}

// HasPosition reports whether an explicit position was set.
func (c *VideoClip) HasPosition() bool { return c.pos != nil }

// GetFrame evaluates the clip at local time t, applying the out-of-range
// policy first. Frames returned may be shared; callers must Clone before
// writing.
func (c *VideoClip) GetFrame(t float64) (*Frame, error) {
	t, err := c.resolveTime(t)
	if err != nil {
		return nil, err
	}
	return c.frameFunc(t)
}

func (c *VideoClip) resolveTime(t float64) (float64, error) {
	if c.span.Contains(t) {
		return t, nil
	}
	if c.policy == Strict {
		return 0, &OutOfRangeError{T: t, Duration: c.span.Duration}
	}
	if t < 0 {
		return 0, nil
	}
	// Freeze the last frame: clamp just inside the span so downstream
	// subclip offsets stay in range.
	d := c.span.Duration.Seconds()
	if d == 0 {
		return 0, nil
	}
	return lastInstant(d), nil
}

// lastInstant returns the greatest representable time strictly before d.
func lastInstant(d float64) float64 {
	const eps = 1e-9
	if d <= eps {
		return 0
	}
	return d - eps
}

// copy returns a shallow duplicate for out-of-place derivation. Mask and
// audio pointers are shared: they are immutable by the same convention.
func (c *VideoClip) copy() *VideoClip {
	dup := *c
	return &dup
}

// WithFrameFunc replaces the frame function, keeping everything else.
func (c *VideoClip) WithFrameFunc(fn FrameFunc) *VideoClip {
	dup := c.copy()
	dup.frameFunc = fn
	return dup
}

// WithSize declares new raster dimensions for a clip whose frame function
// already produces them (used by resizing transforms).
func (c *VideoClip) WithSize(w, h int) *VideoClip {
	dup := c.copy()
	dup.w, dup.h = w, h
	return dup
}

// WithDuration returns a copy with a bounded duration. It is how unbounded
// clips (colors, images, procedural sources) get their length.
func (c *VideoClip) WithDuration(d Rational) (*VideoClip, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("clip: negative duration %s", d)
	}
	dup := c.copy()
	dup.span = TimeSpan{Duration: d}
	if dup.mask != nil && dup.mask.Unbounded() {
		m, err := dup.mask.WithDuration(d)
		if err != nil {
			return nil, err
		}
		dup.mask = m
	}
	if dup.audio != nil && dup.audio.Unbounded() {
		a, err := dup.audio.WithDuration(d)
		if err != nil {
			return nil, err
		}
		dup.audio = a
	}
	return dup, nil
}

// WithMask attaches an opacity clip. The mask must be single-channel and is
// resampled to the clip's size at composite time if dimensions differ.
func (c *VideoClip) WithMask(mask *VideoClip) (*VideoClip, error) {
	if mask != nil && !mask.isMask {
		return nil, &FormatMismatchError{Op: "with mask", Want: "mask clip", Got: "video clip"}
	}
	dup := c.copy()
	dup.mask = mask
	return dup, nil
}

// WithAudio attaches an audio track.
func (c *VideoClip) WithAudio(audio *AudioClip) *VideoClip {
	dup := c.copy()
	dup.audio = audio
	return dup
}

// WithPosition sets a constant compositing position.
func (c *VideoClip) WithPosition(p Position) *VideoClip {
	return c.WithPositionFunc(func(t float64) Position { return p })
}

// WithPositionFunc sets an animated compositing position.
func (c *VideoClip) WithPositionFunc(fn PositionFunc) *VideoClip {
	dup := c.copy()
	dup.pos = fn
	return dup
}

// WithLayer sets the compositing layer; higher layers paint on top.
func (c *VideoClip) WithLayer(layer int) *VideoClip {
	dup := c.copy()
	dup.layer = layer
	return dup
}

// AsMask marks the clip as a single-channel opacity clip. The frame function
// must produce ChannelsMask frames.
func (c *VideoClip) AsMask() *VideoClip {
	dup := c.copy()
	dup.isMask = true
	return dup
}

// WithPolicy sets the out-of-range policy.
func (c *VideoClip) WithPolicy(p Policy) *VideoClip {
	dup := c.copy()
	dup.policy = p
	return dup
}

// WithOpacity scales the clip's opacity by op in [0, 1], creating a uniform
// mask when none is attached.
func (c *VideoClip) WithOpacity(op float64) (*VideoClip, error) {
	dup := c.copy()
	if dup.mask == nil {
		mask, err := NewMask(c.w, c.h, op)
		if err != nil {
			return nil, err
		}
		if !c.span.Unbounded {
			mask, err = mask.WithDuration(c.span.Duration)
			if err != nil {
				return nil, err
			}
		}
		dup.mask = mask
		return dup, nil
	}
	dup.mask = dup.mask.ImageTransform(func(f *Frame) *Frame {
		out := f.Clone()
		for i, v := range out.Pix {
			out.Pix[i] = clampByte(float64(v) * op)
		}
		return out
	})
	return dup, nil
}

// Subclip returns the [start, end) window of the clip remapped to start at
// zero. End past the clip's duration fails; an unbounded parent accepts any
// window and the result becomes bounded.
func (c *VideoClip) Subclip(start, end Rational) (*VideoClip, error) {
	if start.IsNegative() || end.Cmp(start) < 0 {
		return nil, fmt.Errorf("subclip: invalid window [%s, %s)", start, end)
	}
	if !c.span.Unbounded && end.Cmp(c.span.Duration) > 0 {
		return nil, &OutOfRangeError{T: end.Seconds(), Duration: c.span.Duration}
	}
	offset := start.Seconds()
	parent := c.frameFunc
	dup := c.copy()
	dup.frameFunc = func(t float64) (*Frame, error) {
		return parent(t + offset)
	}
	dup.span = TimeSpan{Duration: end.Sub(start)}
	if dup.mask != nil {
		m, err := dup.mask.Subclip(start, end)
		if err != nil {
			return nil, err
		}
		dup.mask = m
	}
	if dup.audio != nil {
		a, err := dup.audio.Subclip(start, end)
		if err != nil {
			return nil, err
		}
		dup.audio = a
	}
	return dup, nil
}

// TimeTransform remaps the clip's timeline: the new clip's frame at time t is
// the parent's frame at timeFunc(t), with the given new duration. Mask and
// audio follow the same remapping. Speed changes must remap the duration and
// the argument consistently; effect.Speed does both.
func (c *VideoClip) TimeTransform(timeFunc func(float64) float64, newSpan TimeSpan) *VideoClip {
	parent := c.frameFunc
	dup := c.copy()
	dup.frameFunc = func(t float64) (*Frame, error) {
		return parent(timeFunc(t))
	}
	dup.span = newSpan
	if dup.mask != nil {
		dup.mask = dup.mask.TimeTransform(timeFunc, newSpan)
	}
	if dup.audio != nil {
		dup.audio = dup.audio.TimeTransform(timeFunc, newSpan)
	}
	return dup
}

// ImageTransform applies a pure per-frame raster function. The function must
// not assume frames arrive in time order and must not retain its input.
func (c *VideoClip) ImageTransform(fn func(*Frame) *Frame) *VideoClip {
	parent := c.frameFunc
	dup := c.copy()
	dup.frameFunc = func(t float64) (*Frame, error) {
		f, err := parent(t)
		if err != nil {
			return nil, err
		}
		return fn(f), nil
	}
	return dup
}

// WithCloser associates a scoped resource (an open decoder) released by Close.
func (c *VideoClip) WithCloser(closer io.Closer) *VideoClip {
	dup := c.copy()
	dup.closer = closer
	return dup
}

// Close releases the decoder resource behind a leaf clip, if any. Derived
// clips share their parent's resource; closing any of them closes the source.
func (c *VideoClip) Close() error {
	var err error
	if c.closer != nil {
		err = c.closer.Close()
	}
	if c.audio != nil {
		if aerr := c.audio.Close(); err == nil {
			err = aerr
		}
	}
	return err
}
