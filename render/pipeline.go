// Package render drives a clip's frame function across its duration and
// streams the frames into an external encoder. It is a synchronous producer:
// each frame is computed, written, and only then is the next one pulled, so
// the pipeline never outruns the encoder's consumption rate.
package render

import (
	"context"
	"fmt"
	"image/color"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/avsync"
	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/composite"
	"github.com/harry-hain/moviepy/effect"
)

// Encoder is the sink a render writes into, typically a wrapper around an
// external encoder process. Start acquires the process and its input
// streams; Close signals end of input; Wait reaps the process and reports a
// non-zero exit as an error.
type Encoder interface {
	Start(ctx context.Context) error
	WriteFrame(f *clip.Frame) error
	WriteAudio(b *clip.AudioBlock) error
	Close() error
	Wait() error
}

// State tracks the pipeline through a render.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateStreaming
	StateFlushing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateFlushing:
		return "flushing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config declares the output clock rates.
type Config struct {
	FPS         float64
	SampleRate  int
	Channels    int
	ProgressLog int64 // log progress every N frames, 0 disables
}

func (c *Config) applyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 44100
	}
	if c.Channels == 0 {
		c.Channels = 2
	}
	if c.ProgressLog == 0 {
		c.ProgressLog = 100
	}
}

// Pipeline renders one clip per Run call. It is not safe for concurrent use.
type Pipeline struct {
	logger zerolog.Logger
	cfg    Config
	state  State
}

// NewPipeline validates the config and returns an idle pipeline.
func NewPipeline(logger zerolog.Logger, cfg Config) (*Pipeline, error) {
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("render: fps must be positive, got %v", cfg.FPS)
	}
	cfg.applyDefaults()
	return &Pipeline{
		logger: logger.With().Str("component", "render").Logger(),
		cfg:    cfg,
		state:  StateIdle,
	}, nil
}

// State reports the pipeline's current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// Run streams c into enc frame by frame. Frame i is rendered at t = i/fps,
// always recomputed from the index. Audio, when the clip carries any, is
// interleaved after each frame in chunks sized by the cumulative sample
// index, so the two streams stay aligned without a shared clock. The context
// is checked between frames; cancellation aborts the encoder and fails the
// render.
func (p *Pipeline) Run(ctx context.Context, c *clip.VideoClip, enc Encoder) error {
	if c == nil {
		return fmt.Errorf("render: nil clip")
	}
	if c.Unbounded() {
		return fmt.Errorf("render: clip is unbounded; set a duration first")
	}
	if c.IsMask() {
		return fmt.Errorf("render: cannot render a mask clip")
	}
	if p.state != StateIdle && p.state != StateClosed && p.state != StateFailed {
		return fmt.Errorf("render: pipeline busy in state %s", p.state)
	}

	// Format problems surface before the encoder process exists.
	audio, err := p.outputAudio(c)
	if err != nil {
		p.state = StateFailed
		return err
	}

	p.state = StateOpening
	if err := enc.Start(ctx); err != nil {
		p.state = StateFailed
		return fmt.Errorf("starting encoder: %w", err)
	}

	frames := avsync.FrameCount(c.Duration(), p.cfg.FPS)
	w, h := c.Size()
	p.logger.Info().
		Int("width", w).
		Int("height", h).
		Float64("fps", p.cfg.FPS).
		Int64("frames", frames).
		Bool("audio", audio != nil).
		Msg("render started")

	p.state = StateStreaming
	var sampleIdx int64
	for i := int64(0); i < frames; i++ {
		select {
		case <-ctx.Done():
			return p.fail(enc, fmt.Errorf("render cancelled: %w", ctx.Err()))
		default:
		}

		t := avsync.FrameTime(i, p.cfg.FPS)
		f, err := c.GetFrame(t)
		if err != nil {
			return p.fail(enc, fmt.Errorf("frame %d at %.4fs: %w", i, t, err))
		}
		if m := c.Mask(); m != nil {
			if f, err = flatten(f, m, t); err != nil {
				return p.fail(enc, fmt.Errorf("mask for frame %d: %w", i, err))
			}
		}
		if err := enc.WriteFrame(f); err != nil {
			return p.fail(enc, &clip.IOError{Op: "write frame", Err: err})
		}

		if audio != nil {
			// Chunk boundaries come from the frame index, not from
			// accumulating chunk sizes, so rounding never drifts.
			end := int64(float64(i+1) / p.cfg.FPS * float64(p.cfg.SampleRate))
			if i == frames-1 {
				end = avsync.SampleCount(c.Duration(), p.cfg.SampleRate)
			}
			if n := end - sampleIdx; n > 0 {
				at := avsync.SampleTime(sampleIdx, p.cfg.SampleRate)
				blk, err := audio.GetBlock(at, int(n))
				if err != nil {
					return p.fail(enc, fmt.Errorf("audio at %.4fs: %w", at, err))
				}
				if err := enc.WriteAudio(blk); err != nil {
					return p.fail(enc, &clip.IOError{Op: "write audio", Err: err})
				}
				sampleIdx = end
			}
		}

		if p.cfg.ProgressLog > 0 && (i+1)%p.cfg.ProgressLog == 0 {
			p.logger.Debug().Int64("frame", i+1).Int64("total", frames).Msg("render progress")
		}
	}

	p.state = StateFlushing
	if err := enc.Close(); err != nil {
		p.state = StateFailed
		return fmt.Errorf("closing encoder input: %w", err)
	}
	if err := enc.Wait(); err != nil {
		p.state = StateFailed
		return fmt.Errorf("encoder exit: %w", err)
	}
	p.state = StateClosed
	p.logger.Info().Int64("frames", frames).Msg("render finished")
	return nil
}

// fail tears the encoder down best effort and records the failure. The
// original error wins over cleanup errors.
func (p *Pipeline) fail(enc Encoder, err error) error {
	p.state = StateFailed
	if cerr := enc.Close(); cerr != nil {
		p.logger.Warn().Err(cerr).Msg("encoder close during teardown")
	}
	if werr := enc.Wait(); werr != nil {
		p.logger.Warn().Err(werr).Msg("encoder wait during teardown")
	}
	p.logger.Error().Err(err).Msg("render failed")
	return err
}

// flatten composites a masked frame onto black, since encoders consume
// opaque rasters.
func flatten(f *clip.Frame, mask *clip.VideoClip, t float64) (*clip.Frame, error) {
	mf, err := mask.GetFrame(t)
	if err != nil {
		return nil, err
	}
	if mf.W != f.W || mf.H != f.H {
		mf = effect.ResampleFrame(mf, f.W, f.H)
	}
	out := clip.NewColorFrame(f.W, f.H, color.RGBA{A: 255})
	effect.Blit(out, f, 0, 0, mf)
	return out, nil
}

// outputAudio returns the clip's audio converted to the configured output
// format, or nil when the clip carries none. Conversion goes through a
// single-track mix, which also rejects unconvertible channel layouts up
// front.
func (p *Pipeline) outputAudio(c *clip.VideoClip) (*clip.AudioClip, error) {
	a := c.Audio()
	if a == nil {
		return nil, nil
	}
	if a.Unbounded() {
		var err error
		if a, err = a.WithDuration(c.Duration()); err != nil {
			return nil, err
		}
	}
	if a.SampleRate() == p.cfg.SampleRate && a.Channels() == p.cfg.Channels {
		return a.WithPolicy(clip.Clamp), nil
	}
	mixed, err := composite.Audio([]composite.Track{{Clip: a}}, composite.AudioOptions{
		SampleRate: p.cfg.SampleRate,
		Channels:   p.cfg.Channels,
		Duration:   c.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("converting audio format: %w", err)
	}
	return mixed, nil
}
