package effect

import (
	"fmt"

	"github.com/harry-hain/moviepy/clip"
)

// ApplyAudio runs audio effects left to right.
func ApplyAudio(a *clip.AudioClip, fx ...Audio) (*clip.AudioClip, error) {
	var err error
	for _, f := range fx {
		if a, err = f(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Volume scales every sample by gain. Values are clipped to [-1, 1] at mix
// time, not here, so chained gains stay linear.
func Volume(gain float64) Audio {
	return func(a *clip.AudioClip) (*clip.AudioClip, error) {
		return a.Transform(func(t float64, b *clip.AudioBlock) *clip.AudioBlock {
			out := b.Clone()
			for i := range out.Samples {
				out.Samples[i] *= gain
			}
			return out
		}), nil
	}
}

// AudioFadeIn ramps the gain from 0 to 1 over the first d seconds.
func AudioFadeIn(d clip.Rational) Audio {
	fd := d.Seconds()
	return audioRamp(func(ts, dur float64) float64 {
		if ts >= fd {
			return 1
		}
		return ts / fd
	}, false)
}

// AudioFadeOut ramps the gain to 0 over the last d seconds of a bounded clip.
func AudioFadeOut(d clip.Rational) Audio {
	fd := d.Seconds()
	return audioRamp(func(ts, dur float64) float64 {
		if ts <= dur-fd {
			return 1
		}
		g := (dur - ts) / fd
		if g < 0 {
			return 0
		}
		return g
	}, true)
}

func audioRamp(gain func(ts, dur float64) float64, needsDuration bool) Audio {
	return func(a *clip.AudioClip) (*clip.AudioClip, error) {
		if needsDuration && a.Unbounded() {
			return nil, fmt.Errorf("audio fade: clip has no duration")
		}
		dur := a.Duration().Seconds()
		sr := float64(a.SampleRate())
		return a.Transform(func(t float64, b *clip.AudioBlock) *clip.AudioBlock {
			out := b.Clone()
			for i := 0; i < out.Len(); i++ {
				g := gain(t+float64(i)/sr, dur)
				if g >= 1 {
					continue
				}
				for ch := 0; ch < out.Channels; ch++ {
					out.Samples[i*out.Channels+ch] *= g
				}
			}
			return out
		}), nil
	}
}

// AudioSpeed resamples the clip's timeline by factor k, matching a Speed
// video effect applied to the clip it accompanies.
func AudioSpeed(k float64) Audio {
	return func(a *clip.AudioClip) (*clip.AudioClip, error) {
		if k <= 0 {
			return nil, fmt.Errorf("audio speed: invalid factor %v", k)
		}
		span := a.Span()
		if !span.Unbounded {
			span = clip.TimeSpan{Duration: a.Duration().DivFloat(k)}
		}
		return a.TimeTransform(func(t float64) float64 { return t * k }, span), nil
	}
}
