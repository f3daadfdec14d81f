package ffmpeg

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/clip"
)

// OpenVideo opens a media file as a leaf video clip. Frames decode on demand
// through a per-clip decoder process; when the file carries audio, an audio
// leaf is attached in the decoder's native format. Close on the returned
// clip releases every decoder it owns.
func OpenVideo(ctx context.Context, logger zerolog.Logger, path string) (*clip.VideoClip, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%s: could not determine duration", path)
	}

	reader, err := NewReader(logger, path, info)
	if err != nil {
		return nil, err
	}
	span := clip.TimeSpan{Duration: clip.FromSeconds(info.Duration.Seconds())}

	w, h := info.Width, info.Height
	fn := func(t float64) (*clip.Frame, error) {
		pix, err := reader.ReadFrameAt(t)
		if err != nil {
			return nil, err
		}
		return &clip.Frame{W: w, H: h, Channels: clip.ChannelsRGB, Pix: pix}, nil
	}
	v, err := clip.NewVideo(fn, w, h, span)
	if err != nil {
		reader.Close()
		return nil, err
	}

	closers := []io.Closer{reader}
	if info.HasAudio {
		rate, channels := info.SampleRate, info.AudioChannels
		if rate <= 0 {
			rate = 44100
		}
		if channels <= 0 {
			channels = 2
		}
		audio, areader, err := openAudioLeaf(logger, path, info, rate, channels, span)
		if err != nil {
			reader.Close()
			return nil, err
		}
		v = v.WithAudio(audio)
		closers = append(closers, areader)
	}
	return v.WithCloser(multiCloser(closers)), nil
}

// OpenAudio opens a media file's audio stream as a leaf audio clip decoded
// at the given rate and channel count.
func OpenAudio(ctx context.Context, logger zerolog.Logger, path string, rate, channels int) (*clip.AudioClip, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%s: could not determine duration", path)
	}
	span := clip.TimeSpan{Duration: clip.FromSeconds(info.Duration.Seconds())}
	audio, reader, err := openAudioLeaf(logger, path, info, rate, channels, span)
	if err != nil {
		return nil, err
	}
	return audio.WithCloser(reader), nil
}

func openAudioLeaf(logger zerolog.Logger, path string, info *Info, rate, channels int, span clip.TimeSpan) (*clip.AudioClip, *AudioReader, error) {
	reader, err := NewAudioReader(logger, path, info, rate, channels)
	if err != nil {
		return nil, nil, err
	}
	fn := func(t float64, n int) (*clip.AudioBlock, error) {
		samples, err := reader.ReadSamplesAt(t, n)
		if err != nil {
			return nil, err
		}
		return &clip.AudioBlock{SampleRate: rate, Channels: channels, Samples: samples}, nil
	}
	a, err := clip.NewAudio(fn, rate, channels, span)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	return a, reader, nil
}

// multiCloser closes a set of decoders, keeping the first error.
type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
