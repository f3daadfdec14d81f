// Package ffmpeg is the boundary to external ffmpeg/ffprobe processes. The
// Writer feeds raw frames and PCM to an encoder process, the readers decode
// source media into raw buffers, and Probe extracts stream metadata. Codec
// work is never reimplemented here; the processes are opaque byte pipes.
package ffmpeg

import (
	"fmt"
	"os/exec"
	"sync"
)

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPixFmt     = "rgb24"
	DefaultOutPixFmt  = "yuv420p"
)

// stderrTailSize bounds how much diagnostic output is retained for error
// reports.
const stderrTailSize = 8 * 1024

func lookupFFmpeg() (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return path, nil
}

func lookupFFprobe() (string, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return "", fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return path, nil
}

// tailBuffer keeps the last tail of everything written to it. Safe for one
// writer and later readers after the writer is done.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
