package composite

import (
	"fmt"
	"math"

	"github.com/harry-hain/moviepy/clip"
)

// Track places an audio clip on the mix timeline.
type Track struct {
	Clip  *clip.AudioClip
	Start clip.Rational
}

// AudioOptions declares the mix's output format and length.
type AudioOptions struct {
	SampleRate int
	Channels   int
	// Duration of the mix. The zero Rational means the envelope of the
	// bounded tracks.
	Duration clip.Rational
}

// Audio sums all active tracks at each mixing instant. Samples are hard
// clipped to [-1, 1] on overflow; the mix never normalizes gain, so callers
// wanting headroom apply effect.Volume themselves. Tracks with a different
// sample rate are linearly resampled, and mono/stereo channel layouts are
// mapped; anything else fails with FormatMismatchError at construction.
func Audio(tracks []Track, opts AudioOptions) (*clip.AudioClip, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("composite: no audio tracks")
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = tracks[0].Clip.SampleRate()
	}
	if opts.Channels == 0 {
		opts.Channels = tracks[0].Clip.Channels()
	}
	for i, trk := range tracks {
		if trk.Clip == nil {
			return nil, fmt.Errorf("composite: track %d has nil clip", i)
		}
		if trk.Start.IsNegative() {
			return nil, fmt.Errorf("composite: track %d starts at %s before zero", i, trk.Start)
		}
		if !channelsConvertible(trk.Clip.Channels(), opts.Channels) {
			return nil, &clip.FormatMismatchError{
				Op:   "audio mix",
				Want: fmt.Sprintf("%dch or mono", opts.Channels),
				Got:  fmt.Sprintf("%dch", trk.Clip.Channels()),
			}
		}
	}

	duration := opts.Duration
	if duration.IsZero() {
		sawBounded := false
		for _, trk := range tracks {
			if trk.Clip.Unbounded() {
				continue
			}
			sawBounded = true
			if end := trk.Start.Add(trk.Clip.Duration()); end.Cmp(duration) > 0 {
				duration = end
			}
		}
		if !sawBounded {
			return nil, fmt.Errorf("composite: every track is unbounded; declare a duration")
		}
	}

	rate, channels := opts.SampleRate, opts.Channels
	mix := make([]Track, len(tracks))
	copy(mix, tracks)

	fn := func(t float64, n int) (*clip.AudioBlock, error) {
		out := clip.NewAudioBlock(n, rate, channels)
		blockEnd := t + float64(n)/float64(rate)
		for _, trk := range mix {
			start := trk.Start.Seconds()
			if blockEnd <= start {
				continue
			}
			if !trk.Clip.Unbounded() && t >= start+trk.Clip.Duration().Seconds() {
				continue
			}
			b, err := fetchConverted(trk.Clip, t-start, n, rate, channels)
			if err != nil {
				return nil, err
			}
			for i := range out.Samples {
				out.Samples[i] += b.Samples[i]
			}
		}
		for i, s := range out.Samples {
			out.Samples[i] = clampSample(s)
		}
		return out, nil
	}
	return clip.NewAudio(fn, rate, channels, clip.TimeSpan{Duration: duration})
}

func channelsConvertible(from, to int) bool {
	return from == to || from == 1 || to == 1
}

// fetchConverted reads n output-format sample frames starting at track-local
// time t, resampling rate and remapping channels as needed. Negative t is
// handled by the clip's silence-fill policy.
func fetchConverted(a *clip.AudioClip, t float64, n, rate, channels int) (*clip.AudioBlock, error) {
	if a.SampleRate() == rate && a.Channels() == channels {
		return a.GetBlock(t, n)
	}
	srcN := n
	if a.SampleRate() != rate {
		srcN = int(math.Ceil(float64(n)*float64(a.SampleRate())/float64(rate))) + 1
	}
	src, err := a.GetBlock(t, srcN)
	if err != nil {
		return nil, err
	}
	if a.SampleRate() != rate {
		src = resampleRate(src, rate, n)
	}
	if src.Channels != channels {
		src = remapChannels(src, channels)
	}
	return src, nil
}

// resampleRate converts a block to the output rate with linear interpolation,
// producing exactly n sample frames.
func resampleRate(src *clip.AudioBlock, rate, n int) *clip.AudioBlock {
	out := clip.NewAudioBlock(n, rate, src.Channels)
	step := float64(src.SampleRate) / float64(rate)
	last := src.Len() - 1
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		lo := int(pos)
		if lo > last {
			lo = last
		}
		hi := lo + 1
		if hi > last {
			hi = last
		}
		frac := pos - float64(lo)
		for ch := 0; ch < src.Channels; ch++ {
			a := src.Samples[lo*src.Channels+ch]
			b := src.Samples[hi*src.Channels+ch]
			out.Samples[i*src.Channels+ch] = a + (b-a)*frac
		}
	}
	return out
}

// remapChannels duplicates mono up or averages down to mono.
func remapChannels(src *clip.AudioBlock, channels int) *clip.AudioBlock {
	out := clip.NewAudioBlock(src.Len(), src.SampleRate, channels)
	for i := 0; i < src.Len(); i++ {
		if src.Channels == 1 {
			for ch := 0; ch < channels; ch++ {
				out.Samples[i*channels+ch] = src.Samples[i]
			}
			continue
		}
		var sum float64
		for ch := 0; ch < src.Channels; ch++ {
			sum += src.Samples[i*src.Channels+ch]
		}
		out.Samples[i] = sum / float64(src.Channels)
	}
	return out
}

func clampSample(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
