package composite

import (
	"errors"
	"math"
	"testing"

	"github.com/harry-hain/moviepy/clip"
)

func constTone(t *testing.T, value float64, rate, channels int, dur clip.Rational) *clip.AudioClip {
	t.Helper()
	a, err := clip.NewAudio(func(ts float64, n int) (*clip.AudioBlock, error) {
		b := clip.NewAudioBlock(n, rate, channels)
		for i := range b.Samples {
			b.Samples[i] = value
		}
		return b, nil
	}, rate, channels, clip.TimeSpan{Duration: dur})
	if err != nil {
		t.Fatalf("NewAudio: %v", err)
	}
	return a
}

func TestMixSums(t *testing.T) {
	a := constTone(t, 0.2, 1000, 1, clip.Seconds(1))
	b := constTone(t, 0.3, 1000, 1, clip.Seconds(1))
	mix, err := Audio([]Track{{Clip: a}, {Clip: b}}, AudioOptions{})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	blk, err := mix.GetBlock(0.2, 10)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	for i, s := range blk.Samples {
		if math.Abs(s-0.5) > 1e-12 {
			t.Fatalf("sample %d = %v, want 0.5", i, s)
		}
	}
}

func TestMixAssociativity(t *testing.T) {
	a := constTone(t, 0.1, 1000, 1, clip.Seconds(1))
	b := constTone(t, 0.2, 1000, 1, clip.Seconds(1))
	c := constTone(t, 0.3, 1000, 1, clip.Seconds(1))

	flat, err := Audio([]Track{{Clip: a}, {Clip: b}, {Clip: c}}, AudioOptions{})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	inner, err := Audio([]Track{{Clip: b}, {Clip: c}}, AudioOptions{})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	nested, err := Audio([]Track{{Clip: a}, {Clip: inner}}, AudioOptions{})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}

	fb, _ := flat.GetBlock(0.5, 20)
	nb, _ := nested.GetBlock(0.5, 20)
	for i := range fb.Samples {
		if math.Abs(fb.Samples[i]-nb.Samples[i]) > 1e-9 {
			t.Fatalf("sample %d: flat %v != nested %v", i, fb.Samples[i], nb.Samples[i])
		}
	}
}

func TestMixHardClip(t *testing.T) {
	a := constTone(t, 0.8, 1000, 1, clip.Seconds(1))
	b := constTone(t, 0.7, 1000, 1, clip.Seconds(1))
	mix, err := Audio([]Track{{Clip: a}, {Clip: b}}, AudioOptions{})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	blk, _ := mix.GetBlock(0, 10)
	for i, s := range blk.Samples {
		if s != 1.0 {
			t.Fatalf("sample %d = %v, want hard clip at 1.0", i, s)
		}
	}
}

func TestMixSilenceWhenNoActiveTrack(t *testing.T) {
	late := constTone(t, 0.5, 1000, 1, clip.Seconds(1))
	mix, err := Audio([]Track{{Clip: late, Start: clip.Seconds(2)}}, AudioOptions{
		Duration: clip.Seconds(4),
	})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	blk, _ := mix.GetBlock(0.5, 10)
	for i, s := range blk.Samples {
		if s != 0 {
			t.Fatalf("sample %d = %v, want silence before track start", i, s)
		}
	}
	during, _ := mix.GetBlock(2.5, 10)
	if during.Samples[0] != 0.5 {
		t.Errorf("active track sample = %v, want 0.5", during.Samples[0])
	}
}

func TestMixResamplesRates(t *testing.T) {
	lo := constTone(t, 0.25, 8000, 1, clip.Seconds(1))
	hi := constTone(t, 0.25, 16000, 1, clip.Seconds(1))
	mix, err := Audio([]Track{{Clip: lo}, {Clip: hi}}, AudioOptions{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	blk, _ := mix.GetBlock(0.1, 100)
	if blk.SampleRate != 16000 {
		t.Fatalf("rate = %d, want 16000", blk.SampleRate)
	}
	for i, s := range blk.Samples {
		if math.Abs(s-0.5) > 1e-9 {
			t.Fatalf("sample %d = %v, want 0.5", i, s)
		}
	}
}

func TestMixChannelMapping(t *testing.T) {
	mono := constTone(t, 0.3, 1000, 1, clip.Seconds(1))
	stereo := constTone(t, 0.2, 1000, 2, clip.Seconds(1))
	mix, err := Audio([]Track{{Clip: mono}, {Clip: stereo}}, AudioOptions{SampleRate: 1000, Channels: 2})
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	blk, _ := mix.GetBlock(0, 4)
	for i, s := range blk.Samples {
		if math.Abs(s-0.5) > 1e-12 {
			t.Fatalf("sample %d = %v, want 0.5", i, s)
		}
	}

	quad := constTone(t, 0.1, 1000, 4, clip.Seconds(1))
	_, err = Audio([]Track{{Clip: quad}}, AudioOptions{SampleRate: 1000, Channels: 2})
	var fm *clip.FormatMismatchError
	if !errors.As(err, &fm) {
		t.Fatalf("err = %v, want FormatMismatchError", err)
	}
}
