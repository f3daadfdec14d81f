package clip

import (
	"fmt"
	"io"
	"math"
)

// AudioFunc produces n interleaved sample frames starting at local time t.
// Like FrameFunc it must be pure and order-independent.
type AudioFunc func(t float64, n int) (*AudioBlock, error)

// AudioClip is the audio counterpart of VideoClip: a timespan plus a pure
// function from time to PCM block.
type AudioClip struct {
	audioFunc  AudioFunc
	span       TimeSpan
	sampleRate int
	channels   int
	policy     Policy
	closer     io.Closer
}

// NewAudio builds an audio clip from a block function.
func NewAudio(fn AudioFunc, sampleRate, channels int, span TimeSpan) (*AudioClip, error) {
	if fn == nil {
		return nil, fmt.Errorf("clip: nil audio function")
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("clip: invalid audio format %dHz/%dch", sampleRate, channels)
	}
	if span.Duration.IsNegative() {
		return nil, fmt.Errorf("clip: negative duration %s", span.Duration)
	}
	return &AudioClip{audioFunc: fn, span: span, sampleRate: sampleRate, channels: channels}, nil
}

// NewSilence returns a silent clip with no intrinsic end.
func NewSilence(sampleRate, channels int) (*AudioClip, error) {
	return NewAudio(func(t float64, n int) (*AudioBlock, error) {
		return NewAudioBlock(n, sampleRate, channels), nil
	}, sampleRate, channels, UnboundedSpan())
}

// NewSine returns a test tone at the given frequency and amplitude.
func NewSine(freq, amplitude float64, sampleRate, channels int) (*AudioClip, error) {
	return NewAudio(func(t float64, n int) (*AudioBlock, error) {
		b := NewAudioBlock(n, sampleRate, channels)
		for i := 0; i < n; i++ {
			v := amplitude * math.Sin(2*math.Pi*freq*(t+float64(i)/float64(sampleRate)))
			for ch := 0; ch < channels; ch++ {
				b.Samples[i*channels+ch] = v
			}
		}
		return b, nil
	}, sampleRate, channels, UnboundedSpan())
}

// SampleRate returns the clip's sample rate in Hz.
func (a *AudioClip) SampleRate() int { return a.sampleRate }

// Channels returns the clip's channel count.
func (a *AudioClip) Channels() int { return a.channels }

// Span returns the clip's timespan.
func (a *AudioClip) Span() TimeSpan { return a.span }

// Duration returns the clip's duration. Zero for unbounded clips.
func (a *AudioClip) Duration() Rational { return a.span.Duration }

// Unbounded reports whether the clip has an intrinsic end.
func (a *AudioClip) Unbounded() bool { return a.span.Unbounded }

// GetBlock returns n sample frames starting at local time t. Requests
// reaching outside the span are silence-filled under the default policy or
// fail with OutOfRangeError under Strict.
func (a *AudioClip) GetBlock(t float64, n int) (*AudioBlock, error) {
	if n <= 0 {
		return NewAudioBlock(0, a.sampleRate, a.channels), nil
	}
	dur := a.span.Duration.Seconds()
	blockDur := float64(n) / float64(a.sampleRate)
	inRange := t >= 0 && (a.span.Unbounded || t+blockDur <= dur+1e-9)
	if inRange {
		return a.audioFunc(t, n)
	}
	if a.policy == Strict {
		bad := t
		if t >= 0 {
			bad = t + blockDur
		}
		return nil, &OutOfRangeError{T: bad, Duration: a.span.Duration}
	}
	// Silence-fill the portion outside the span.
	out := NewAudioBlock(n, a.sampleRate, a.channels)
	startIdx := 0
	if t < 0 {
		startIdx = int(math.Ceil(-t * float64(a.sampleRate)))
	}
	endIdx := n
	if !a.span.Unbounded {
		avail := int(math.Floor((dur - t) * float64(a.sampleRate)))
		if avail < endIdx {
			endIdx = avail
		}
	}
	if startIdx >= endIdx {
		return out, nil
	}
	inner, err := a.audioFunc(t+float64(startIdx)/float64(a.sampleRate), endIdx-startIdx)
	if err != nil {
		return nil, err
	}
	copy(out.Samples[startIdx*a.channels:], inner.Samples)
	return out, nil
}

func (a *AudioClip) copy() *AudioClip {
	dup := *a
	return &dup
}

// WithPolicy sets the out-of-range policy.
func (a *AudioClip) WithPolicy(p Policy) *AudioClip {
	dup := a.copy()
	dup.policy = p
	return dup
}

// WithDuration returns a copy with a bounded duration.
func (a *AudioClip) WithDuration(d Rational) (*AudioClip, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("clip: negative duration %s", d)
	}
	dup := a.copy()
	dup.span = TimeSpan{Duration: d}
	return dup, nil
}

// Subclip returns the [start, end) window remapped to start at zero.
func (a *AudioClip) Subclip(start, end Rational) (*AudioClip, error) {
	if start.IsNegative() || end.Cmp(start) < 0 {
		return nil, fmt.Errorf("subclip: invalid window [%s, %s)", start, end)
	}
	if !a.span.Unbounded && end.Cmp(a.span.Duration) > 0 {
		return nil, &OutOfRangeError{T: end.Seconds(), Duration: a.span.Duration}
	}
	offset := start.Seconds()
	parent := a.audioFunc
	dup := a.copy()
	dup.audioFunc = func(t float64, n int) (*AudioBlock, error) {
		return parent(t+offset, n)
	}
	dup.span = TimeSpan{Duration: end.Sub(start)}
	return dup, nil
}

// TimeTransform remaps the clip's timeline like VideoClip.TimeTransform.
// The samples themselves are fetched at the remapped instant; pitch is not
// preserved (same behavior as frame-function time warps).
func (a *AudioClip) TimeTransform(timeFunc func(float64) float64, newSpan TimeSpan) *AudioClip {
	parent := a.audioFunc
	dup := a.copy()
	dup.audioFunc = func(t float64, n int) (*AudioBlock, error) {
		return parent(timeFunc(t), n)
	}
	dup.span = newSpan
	return dup
}

// Transform applies a pure per-block function (volume, fades).
func (a *AudioClip) Transform(fn func(t float64, b *AudioBlock) *AudioBlock) *AudioClip {
	parent := a.audioFunc
	dup := a.copy()
	dup.audioFunc = func(t float64, n int) (*AudioBlock, error) {
		b, err := parent(t, n)
		if err != nil {
			return nil, err
		}
		return fn(t, b), nil
	}
	return dup
}

// WithCloser associates a scoped decoder resource released by Close.
func (a *AudioClip) WithCloser(closer io.Closer) *AudioClip {
	dup := a.copy()
	dup.closer = closer
	return dup
}

// Close releases the decoder resource behind a leaf clip, if any.
func (a *AudioClip) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
