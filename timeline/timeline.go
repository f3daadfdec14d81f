// Package timeline sequences clips end to end on a shared time axis,
// remapping global time to each segment's local time. A nonzero transition
// overlaps adjacent segments and blends them with a linear crossfade.
package timeline

import (
	"fmt"
	"sort"

	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/composite"
	"github.com/harry-hain/moviepy/effect"
)

// Options controls how segments are joined.
type Options struct {
	// Transition is the crossfade length between adjacent segments. Zero
	// means a hard cut. Each segment's total duration contribution shrinks
	// by one transition per junction.
	Transition clip.Rational
}

// Concatenate joins bounded clips in order. With a zero transition the total
// duration is the sum of segment durations; with transition d it is the sum
// minus d per junction, and each junction blends the outgoing and incoming
// frames with a linear alpha ramp. Segment audio is carried across with
// matching fades and mixed at the junctions.
//
// Each junction blends exactly two segments, so an interior segment must be
// strictly longer than twice the transition (end segments, strictly longer
// than one). Shorter segments would need three-way overlap and are rejected
// with an InvalidTransitionError.
func Concatenate(clips []*clip.VideoClip, opts Options) (*clip.VideoClip, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("timeline: no clips to concatenate")
	}
	trans := opts.Transition
	if trans.IsNegative() {
		return nil, fmt.Errorf("timeline: negative transition %s", trans)
	}
	for i, c := range clips {
		if c == nil {
			return nil, fmt.Errorf("timeline: clip %d is nil", i)
		}
		if c.Unbounded() {
			return nil, fmt.Errorf("timeline: clip %d is unbounded; set a duration first", i)
		}
		if c.IsMask() {
			return nil, fmt.Errorf("timeline: clip %d is a mask", i)
		}
	}
	if !trans.IsZero() && len(clips) > 1 {
		for i, c := range clips {
			// Interior segments lose a transition at both ends.
			junctions := int64(2)
			if i == 0 || i == len(clips)-1 {
				junctions = 1
			}
			if trans.MulInt(junctions).Cmp(c.Duration()) >= 0 {
				return nil, &clip.InvalidTransitionError{
					Transition: trans,
					ClipIndex:  i,
					Duration:   c.Duration(),
				}
			}
		}
	}

	offsets := make([]clip.Rational, len(clips))
	for i := 1; i < len(clips); i++ {
		offsets[i] = offsets[i-1].Add(clips[i-1].Duration()).Sub(trans)
	}
	total := offsets[len(offsets)-1].Add(clips[len(clips)-1].Duration())

	w, h := canvasSize(clips)
	segs := make([]*clip.VideoClip, len(clips))
	copy(segs, clips)
	starts := make([]float64, len(offsets))
	for i, off := range offsets {
		starts[i] = off.Seconds()
	}
	fadeLen := trans.Seconds()

	fn := func(t float64) (*clip.Frame, error) {
		i := segmentAt(starts, t)
		if fadeLen > 0 && i > 0 && t < starts[i]+fadeLen {
			prev, err := segmentFrame(segs[i-1], t-starts[i-1], w, h)
			if err != nil {
				return nil, err
			}
			next, err := segmentFrame(segs[i], t-starts[i], w, h)
			if err != nil {
				return nil, err
			}
			return lerpFrames(prev, next, (t-starts[i])/fadeLen)
		}
		return segmentFrame(segs[i], t-starts[i], w, h)
	}

	out, err := clip.NewVideo(fn, w, h, clip.TimeSpan{Duration: total})
	if err != nil {
		return nil, err
	}
	if anyMask(segs) {
		mask, err := concatMasks(segs, starts, fadeLen, w, h, total)
		if err != nil {
			return nil, err
		}
		if out, err = out.WithMask(mask); err != nil {
			return nil, err
		}
	}
	audio, err := concatAudio(segs, offsets, trans)
	if err != nil {
		return nil, err
	}
	if audio != nil {
		out = out.WithAudio(audio)
	}
	return out, nil
}

// segmentAt returns the index of the segment active at t: the last segment
// whose start offset is at or before t.
func segmentAt(starts []float64, t float64) int {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > t }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// canvasSize is the envelope of all segment dimensions. Smaller segments are
// drawn centered on black.
func canvasSize(clips []*clip.VideoClip) (int, int) {
	var w, h int
	for _, c := range clips {
		cw, ch := c.Size()
		if cw > w {
			w = cw
		}
		if ch > h {
			h = ch
		}
	}
	return w, h
}

// segmentFrame fetches a segment's frame at local time t, placed centered on
// a canvas-sized black frame when the segment is smaller than the canvas.
func segmentFrame(c *clip.VideoClip, t float64, w, h int) (*clip.Frame, error) {
	f, err := c.GetFrame(t)
	if err != nil {
		return nil, err
	}
	if f.W == w && f.H == h {
		return f, nil
	}
	canvas := clip.NewFrame(w, h, f.Channels)
	placeFrame(canvas, f, (w-f.W)/2, (h-f.H)/2)
	return canvas, nil
}

// placeFrame copies src into dst at (x, y) without blending.
func placeFrame(dst, src *clip.Frame, x, y int) {
	for row := 0; row < src.H; row++ {
		dy := y + row
		if dy < 0 || dy >= dst.H {
			continue
		}
		srcOff := src.Offset(0, row)
		dstOff := dst.Offset(x, dy)
		copy(dst.Pix[dstOff:dstOff+src.W*src.Channels], src.Pix[srcOff:srcOff+src.W*src.Channels])
	}
}

// lerpFrames blends a toward b by alpha in [0, 1]. The frames must share a
// channel count; segments with different pixel formats cannot be blended.
func lerpFrames(a, b *clip.Frame, alpha float64) (*clip.Frame, error) {
	if a.Channels != b.Channels {
		return nil, &clip.FormatMismatchError{
			Op:   "crossfade",
			Want: fmt.Sprintf("%d channels", a.Channels),
			Got:  fmt.Sprintf("%d channels", b.Channels),
		}
	}
	out := a.Clone()
	for i := range out.Pix {
		av := float64(a.Pix[i])
		out.Pix[i] = clampPix(av + (float64(b.Pix[i])-av)*alpha)
	}
	return out, nil
}

func clampPix(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func anyMask(clips []*clip.VideoClip) bool {
	for _, c := range clips {
		if c.Mask() != nil {
			return true
		}
	}
	return false
}

// concatMasks builds the concatenated clip's mask track. Segments without a
// mask contribute full opacity over their own area, zero outside it on the
// shared canvas.
func concatMasks(segs []*clip.VideoClip, starts []float64, fadeLen float64, w, h int, total clip.Rational) (*clip.VideoClip, error) {
	fn := func(t float64) (*clip.Frame, error) {
		i := segmentAt(starts, t)
		if fadeLen > 0 && i > 0 && t < starts[i]+fadeLen {
			prev, err := segmentMask(segs[i-1], t-starts[i-1], w, h)
			if err != nil {
				return nil, err
			}
			next, err := segmentMask(segs[i], t-starts[i], w, h)
			if err != nil {
				return nil, err
			}
			return lerpFrames(prev, next, (t-starts[i])/fadeLen)
		}
		return segmentMask(segs[i], t-starts[i], w, h)
	}
	v, err := clip.NewVideo(fn, w, h, clip.TimeSpan{Duration: total})
	if err != nil {
		return nil, err
	}
	return v.AsMask(), nil
}

func segmentMask(c *clip.VideoClip, t float64, w, h int) (*clip.Frame, error) {
	cw, ch := c.Size()
	var f *clip.Frame
	if m := c.Mask(); m != nil {
		mf, err := m.GetFrame(t)
		if err != nil {
			return nil, err
		}
		if mf.W != cw || mf.H != ch {
			mf = effect.ResampleFrame(mf, cw, ch)
		}
		f = mf
	} else {
		f = clip.NewMaskFrame(cw, ch, 1)
	}
	if f.W == w && f.H == h {
		return f, nil
	}
	canvas := clip.NewFrame(w, h, clip.ChannelsMask)
	placeFrame(canvas, f, (w-f.W)/2, (h-f.H)/2)
	return canvas, nil
}

// concatAudio lays segment audio tracks at the segment offsets and mixes
// them. At a crossfade junction the outgoing track fades out while the
// incoming one fades in, matching the video blend. Returns nil when no
// segment carries audio.
func concatAudio(segs []*clip.VideoClip, offsets []clip.Rational, trans clip.Rational) (*clip.AudioClip, error) {
	var tracks []composite.Track
	for i, c := range segs {
		a := c.Audio()
		if a == nil {
			continue
		}
		if a.Unbounded() {
			var err error
			if a, err = a.WithDuration(c.Duration()); err != nil {
				return nil, err
			}
		}
		if !trans.IsZero() {
			var fx []effect.Audio
			if i > 0 {
				fx = append(fx, effect.AudioFadeIn(trans))
			}
			if i < len(segs)-1 {
				fx = append(fx, effect.AudioFadeOut(trans))
			}
			var err error
			if a, err = effect.ApplyAudio(a, fx...); err != nil {
				return nil, err
			}
		}
		tracks = append(tracks, composite.Track{Clip: a, Start: offsets[i]})
	}
	if len(tracks) == 0 {
		return nil, nil
	}
	return composite.Audio(tracks, composite.AudioOptions{})
}
