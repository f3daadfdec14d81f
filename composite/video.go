// Package composite combines several clips into one: spatial layering with
// positioning and masking for video, channel mixing for audio. Every sub-clip
// is evaluated at its own local time.
package composite

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/effect"
)

// Layer places a clip inside a composite. Start is the layer's start time on
// the composite's timeline; Pos overrides the clip's own position when set.
type Layer struct {
	Clip  *clip.VideoClip
	Start clip.Rational
	Pos   *clip.Position
}

// Options declares the composite's canvas and timeline.
type Options struct {
	// Width and Height of the canvas. Zero means the first layer's size.
	Width, Height int
	// Duration of the composite. The zero Rational means the envelope of the
	// bounded layers.
	Duration clip.Rational
	// Background fills pixels no layer covers. Default black.
	Background color.RGBA
	// Transparent attaches a computed opacity mask to the result, built by
	// compositing the layers' masks over a fully transparent canvas.
	Transparent bool
	// Truncate allows layers to run past the declared duration; their tail
	// is simply never evaluated. Without it an overrunning layer is a
	// construction error.
	Truncate bool
}

// Video builds a composite clip. Paint order is slice order, stable-sorted by
// each clip's layer index, so later entries and higher layers draw on top.
func Video(layers []Layer, opts Options) (*clip.VideoClip, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("composite: no layers")
	}
	for i, l := range layers {
		if l.Clip == nil {
			return nil, fmt.Errorf("composite: layer %d has nil clip", i)
		}
		if l.Start.IsNegative() {
			return nil, fmt.Errorf("composite: layer %d starts at %s before zero", i, l.Start)
		}
	}

	w, h := opts.Width, opts.Height
	if w == 0 || h == 0 {
		w, h = layers[0].Clip.Size()
	}

	duration, err := resolveDuration(layers, opts)
	if err != nil {
		return nil, err
	}

	ordered := make([]Layer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Clip.Layer() < ordered[j].Clip.Layer()
	})

	bg := opts.Background
	frameFunc := func(t float64) (*clip.Frame, error) {
		canvas := clip.NewColorFrame(w, h, bg)
		for _, l := range ordered {
			if err := blitLayer(canvas, l, t); err != nil {
				return nil, err
			}
		}
		return canvas, nil
	}

	out, err := clip.NewVideo(frameFunc, w, h, clip.TimeSpan{Duration: duration})
	if err != nil {
		return nil, err
	}

	if opts.Transparent {
		mask, err := compositeMask(ordered, w, h, duration)
		if err != nil {
			return nil, err
		}
		if out, err = out.WithMask(mask); err != nil {
			return nil, err
		}
	}

	audio, err := compositeAudio(ordered, duration)
	if err != nil {
		return nil, err
	}
	if audio != nil {
		out = out.WithAudio(audio)
	}
	return out, nil
}

func resolveDuration(layers []Layer, opts Options) (clip.Rational, error) {
	declared := !opts.Duration.IsZero()
	var envelope clip.Rational
	sawBounded := false
	for i, l := range layers {
		if l.Clip.Unbounded() {
			continue
		}
		sawBounded = true
		end := l.Start.Add(l.Clip.Duration())
		if declared && end.Cmp(opts.Duration) > 0 && !opts.Truncate {
			return clip.Rational{}, fmt.Errorf(
				"composite: layer %d ends at %s past declared duration %s (set Truncate to allow)",
				i, end, opts.Duration)
		}
		if end.Cmp(envelope) > 0 {
			envelope = end
		}
	}
	if declared {
		return opts.Duration, nil
	}
	if !sawBounded {
		return clip.Rational{}, fmt.Errorf("composite: every layer is unbounded; declare a duration")
	}
	return envelope, nil
}

// blitLayer paints one layer onto the canvas at composite time t, skipping
// layers outside their active window.
func blitLayer(canvas *clip.Frame, l Layer, t float64) error {
	local := t - l.Start.Seconds()
	if !active(l.Clip.Span(), local) {
		return nil
	}
	f, err := l.Clip.GetFrame(local)
	if err != nil {
		return err
	}
	mf, err := layerMaskFrame(l.Clip, f, local)
	if err != nil {
		return err
	}
	x, y := placement(l, local, canvas.W, canvas.H, f.W, f.H)
	effect.Blit(canvas, f, x, y, mf)
	return nil
}

func active(span clip.TimeSpan, local float64) bool {
	if local < 0 {
		return false
	}
	return span.Unbounded || local < span.Duration.Seconds()
}

// layerMaskFrame fetches the layer's mask frame at local time, resampled to
// the frame it modulates. A mask that is not single-channel is a format error.
func layerMaskFrame(c *clip.VideoClip, f *clip.Frame, local float64) (*clip.Frame, error) {
	m := c.Mask()
	if m == nil {
		return nil, nil
	}
	mf, err := m.GetFrame(local)
	if err != nil {
		return nil, err
	}
	if mf.Channels != clip.ChannelsMask {
		return nil, &clip.FormatMismatchError{
			Op:   "composite mask",
			Want: "1 channel",
			Got:  fmt.Sprintf("%d channels", mf.Channels),
		}
	}
	if mf.W != f.W || mf.H != f.H {
		mf = effect.ResampleFrame(mf, f.W, f.H)
	}
	return mf, nil
}

func placement(l Layer, local float64, canvasW, canvasH, w, h int) (int, int) {
	var p clip.Position
	switch {
	case l.Pos != nil:
		p = *l.Pos
	case l.Clip.HasPosition():
		p = l.Clip.Position(local)
	}
	return resolvePosition(p, canvasW, canvasH, w, h)
}

func resolvePosition(p clip.Position, canvasW, canvasH, w, h int) (int, int) {
	x, y := p.X, p.Y
	if p.Relative {
		x *= float64(canvasW)
		y *= float64(canvasH)
	}
	xi := alignAxis(p.XAlign, x, canvasW, w)
	yi := alignAxis(p.YAlign, y, canvasH, h)
	return xi, yi
}

func alignAxis(a clip.Align, coord float64, canvas, extent int) int {
	switch a {
	case clip.AlignStart:
		return 0
	case clip.AlignCenter:
		return (canvas - extent) / 2
	case clip.AlignEnd:
		return canvas - extent
	default:
		return int(coord)
	}
}

// compositeMask builds the result's opacity clip by compositing layer masks
// over a fully transparent canvas: aOut = aFg + aBg*(1-aFg).
func compositeMask(ordered []Layer, w, h int, duration clip.Rational) (*clip.VideoClip, error) {
	frameFunc := func(t float64) (*clip.Frame, error) {
		alpha := clip.NewFrame(w, h, clip.ChannelsMask)
		for _, l := range ordered {
			local := t - l.Start.Seconds()
			if !active(l.Clip.Span(), local) {
				continue
			}
			f, err := l.Clip.GetFrame(local)
			if err != nil {
				return nil, err
			}
			mf, err := layerMaskFrame(l.Clip, f, local)
			if err != nil {
				return nil, err
			}
			if mf == nil {
				mf = clip.NewMaskFrame(f.W, f.H, 1)
			}
			x, y := placement(l, local, w, h, f.W, f.H)
			blitAlpha(alpha, mf, x, y)
		}
		return alpha, nil
	}
	mask, err := clip.NewVideo(frameFunc, w, h, clip.TimeSpan{Duration: duration})
	if err != nil {
		return nil, err
	}
	return mask.AsMask(), nil
}

func blitAlpha(dst, src *clip.Frame, x, y int) {
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
			fg := float64(src.Pix[sy*src.W+sx]) / 255
			bg := float64(dst.Pix[dy*dst.W+dx]) / 255
			dst.Pix[dy*dst.W+dx] = uint8((fg+bg*(1-fg))*255 + 0.5)
		}
	}
}

// compositeAudio mixes the audio tracks of layers carrying one. Nil when no
// layer has audio.
func compositeAudio(ordered []Layer, duration clip.Rational) (*clip.AudioClip, error) {
	var tracks []Track
	for _, l := range ordered {
		if a := l.Clip.Audio(); a != nil {
			tracks = append(tracks, Track{Clip: a, Start: l.Start})
		}
	}
	if len(tracks) == 0 {
		return nil, nil
	}
	return Audio(tracks, AudioOptions{
		SampleRate: tracks[0].Clip.SampleRate(),
		Channels:   tracks[0].Clip.Channels(),
		Duration:   duration,
	})
}
