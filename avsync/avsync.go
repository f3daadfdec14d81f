// Package avsync aligns an audio track's sample clock with a video track's
// frame clock. There is no shared clock object: frame index i maps to time
// i/fps and sample index j maps to j/rate, both evaluated against the same
// timeline, so rounding drift stays additive instead of compounding.
package avsync

import (
	"fmt"
	"math"

	"github.com/harry-hain/moviepy/clip"
)

// Policy selects how mismatched track lengths are reconciled.
type Policy int

const (
	// PadToLongest extends the combined duration to the longer track. The
	// video freezes its last frame past its own end; the audio pads with
	// silence.
	PadToLongest Policy = iota
	// TruncateToShortest cuts the combined duration to the shorter track.
	TruncateToShortest
)

// Combine attaches audio to video under the given length policy and returns
// a clip whose declared duration reflects that policy. Both tracks must be
// bounded.
func Combine(video *clip.VideoClip, audio *clip.AudioClip, p Policy) (*clip.VideoClip, error) {
	if video == nil {
		return nil, fmt.Errorf("avsync: nil video track")
	}
	if audio == nil {
		return nil, fmt.Errorf("avsync: nil audio track")
	}
	if video.Unbounded() {
		return nil, fmt.Errorf("avsync: video track is unbounded")
	}
	if audio.Unbounded() {
		return nil, fmt.Errorf("avsync: audio track is unbounded")
	}

	vd, ad := video.Duration(), audio.Duration()
	var target clip.Rational
	switch p {
	case PadToLongest:
		target = vd
		if ad.Cmp(target) > 0 {
			target = ad
		}
	case TruncateToShortest:
		target = vd
		if ad.Cmp(target) < 0 {
			target = ad
		}
	default:
		return nil, fmt.Errorf("avsync: unknown policy %d", p)
	}

	// Clamp inside each track's own span so padding past a shorter track
	// freezes the last frame and silence-fills, rather than erroring.
	v := video.WithPolicy(clip.Clamp)
	a := audio.WithPolicy(clip.Clamp)

	w, h := v.Size()
	out, err := clip.NewVideo(v.GetFrame, w, h, clip.TimeSpan{Duration: target})
	if err != nil {
		return nil, err
	}
	if m := video.Mask(); m != nil {
		if out, err = out.WithMask(m.WithPolicy(clip.Clamp)); err != nil {
			return nil, err
		}
	}
	synced, err := clip.NewAudio(a.GetBlock, a.SampleRate(), a.Channels(), clip.TimeSpan{Duration: target})
	if err != nil {
		return nil, err
	}
	return out.WithAudio(synced), nil
}

// FrameTime is the timestamp of video frame i at the given rate. Always
// recomputed from the index so error does not accumulate across frames.
func FrameTime(i int64, fps float64) float64 {
	return float64(i) / fps
}

// SampleTime is the timestamp of audio sample frame j at the given rate.
func SampleTime(j int64, sampleRate int) float64 {
	return float64(j) / float64(sampleRate)
}

// FrameCount is the number of whole frames covering duration at the given
// rate: ceil(duration * fps).
func FrameCount(duration clip.Rational, fps float64) int64 {
	return int64(math.Ceil(duration.Seconds() * fps))
}

// SampleCount is the number of audio sample frames covering duration.
func SampleCount(duration clip.Rational, sampleRate int) int64 {
	return int64(math.Round(duration.Seconds() * float64(sampleRate)))
}
