package render

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/ffmpeg"
)

// ToFile renders a clip to a media file through an ffmpeg encoder process.
// Masked frames are flattened onto black and audio, when the clip carries
// any, is muxed into the same file.
func ToFile(ctx context.Context, logger zerolog.Logger, c *clip.VideoClip, path string, cfg Config) error {
	if c == nil {
		return fmt.Errorf("render: nil clip")
	}
	p, err := NewPipeline(logger, cfg)
	if err != nil {
		return err
	}
	w, h := c.Size()
	enc, err := ffmpeg.NewWriter(logger, ffmpeg.WriterOptions{
		OutputPath:      path,
		Width:           w,
		Height:          h,
		FPS:             p.cfg.FPS,
		HasAudio:        c.Audio() != nil,
		AudioSampleRate: p.cfg.SampleRate,
		AudioChannels:   p.cfg.Channels,
	})
	if err != nil {
		return err
	}
	return p.Run(ctx, c, enc)
}
