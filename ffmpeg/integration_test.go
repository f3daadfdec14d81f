package ffmpeg

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/clip"
)

// TestEncodeDecodeRoundTrip writes solid frames plus a sine tone through the
// encoder, then probes and decodes the result. Needs ffmpeg on PATH.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)
	logger := zerolog.Nop()
	out := filepath.Join(t.TempDir(), "roundtrip.mp4")

	const (
		width  = 64
		height = 48
		fps    = 10.0
		frames = 20
		rate   = 44100
	)

	w, err := NewWriter(logger, WriterOptions{
		OutputPath:      out,
		Width:           width,
		Height:          height,
		FPS:             fps,
		HasAudio:        true,
		AudioSampleRate: rate,
		AudioChannels:   1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Solid green frames so chroma subsampling losses are easy to bound.
	frame := clip.NewFrame(width, height, clip.ChannelsRGB)
	for i := 0; i < len(frame.Pix); i += 3 {
		frame.Pix[i+1] = 200
	}
	samplesPerFrame := rate / int(fps)
	for i := 0; i < frames; i++ {
		if err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
		blk := clip.NewAudioBlock(samplesPerFrame, rate, 1)
		for j := range blk.Samples {
			blk.Samples[j] = 0.2 * math.Sin(2*math.Pi*440*float64(j)/float64(rate))
		}
		if err := w.WriteAudio(blk); err != nil {
			t.Fatalf("WriteAudio %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	info, err := Probe(context.Background(), out)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Width != width || info.Height != height {
		t.Errorf("encoded size = %dx%d, want %dx%d", info.Width, info.Height, width, height)
	}
	if !info.HasAudio {
		t.Error("encoded file has no audio stream")
	}

	v, err := OpenVideo(context.Background(), logger, out)
	if err != nil {
		t.Fatalf("OpenVideo: %v", err)
	}
	defer v.Close()

	f, err := v.GetFrame(1.0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	r, g, b := f.Pix[0], f.Pix[1], f.Pix[2]
	if g < 170 || r > 40 || b > 40 {
		t.Errorf("decoded pixel = (%d, %d, %d), want mostly green", r, g, b)
	}
}

func TestReaderSeekPatterns(t *testing.T) {
	skipIfNoFFmpeg(t)
	logger := zerolog.Nop()
	out := filepath.Join(t.TempDir(), "seek.mp4")

	w, err := NewWriter(logger, WriterOptions{
		OutputPath: out,
		Width:      32,
		Height:     32,
		FPS:        10,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Brightness encodes the frame index.
	for i := 0; i < 30; i++ {
		f := clip.NewFrame(32, 32, clip.ChannelsRGB)
		level := uint8(i * 8)
		for j := range f.Pix {
			f.Pix[j] = level
		}
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	v, err := OpenVideo(context.Background(), logger, out)
	if err != nil {
		t.Fatalf("OpenVideo: %v", err)
	}
	defer v.Close()

	near := func(got uint8, want int) bool {
		d := int(got) - want
		return d >= -24 && d <= 24
	}

	// Sequential, forward skip, and a backwards seek.
	f0, err := v.GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame(0): %v", err)
	}
	if !near(f0.Pix[0], 0) {
		t.Errorf("frame 0 level = %d, want ~0", f0.Pix[0])
	}
	f20, err := v.GetFrame(2.0)
	if err != nil {
		t.Fatalf("GetFrame(2.0): %v", err)
	}
	if !near(f20.Pix[0], 160) {
		t.Errorf("frame 20 level = %d, want ~160", f20.Pix[0])
	}
	f5, err := v.GetFrame(0.5)
	if err != nil {
		t.Fatalf("GetFrame(0.5): %v", err)
	}
	if !near(f5.Pix[0], 40) {
		t.Errorf("frame 5 level = %d, want ~40", f5.Pix[0])
	}
}
