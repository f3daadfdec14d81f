package ffmpeg

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/pkg/util"
)

// skipAheadLimit is the largest forward distance, in frames, that is cheaper
// to decode-and-discard than to reopen the decoder with a seek.
const skipAheadLimit = 100

// Reader decodes one video file through a single ffmpeg process reading
// rawvideo frames off its stdout. Decoding is sequential; a request behind
// the current position or far ahead of it reinitializes the process with a
// seek. One reader belongs to one leaf clip, and a mutex serializes frame
// requests so clips shared across composite branches stay safe.
type Reader struct {
	logger     zerolog.Logger
	ffmpegPath string
	info       *Info
	path       string
	frameSize  int

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *tailBuffer
	pos       int64 // index of the next frame stdout will yield
	lastFrame []byte
	closed    bool
}

// NewReader probes the file and prepares a decoder. The process is spawned
// lazily on the first frame request.
func NewReader(logger zerolog.Logger, path string, info *Info) (*Reader, error) {
	if info == nil {
		return nil, fmt.Errorf("probe info is required")
	}
	if !info.HasVideo {
		return nil, fmt.Errorf("%s has no video stream", path)
	}
	if info.Width <= 0 || info.Height <= 0 || info.FPS <= 0 {
		return nil, fmt.Errorf("%s: unusable stream geometry %dx%d @ %v fps", path, info.Width, info.Height, info.FPS)
	}
	ffmpegPath, err := lookupFFmpeg()
	if err != nil {
		return nil, err
	}
	return &Reader{
		logger:     logger.With().Str("component", "ffmpeg-reader").Str("file", path).Logger(),
		ffmpegPath: ffmpegPath,
		info:       info,
		path:       path,
		frameSize:  info.Width * info.Height * 3,
	}, nil
}

// Info returns the probed stream metadata.
func (r *Reader) Info() *Info { return r.info }

// ReadFrameAt decodes the frame covering time t and returns its rgb24 bytes.
// The returned slice is owned by the caller.
func (r *Reader) ReadFrameAt(t float64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	idx := int64(r.info.FPS*t + 1e-5)
	if idx == r.pos-1 && r.lastFrame != nil {
		// Re-request of the frame just decoded.
		return append([]byte(nil), r.lastFrame...), nil
	}
	if r.cmd == nil || idx < r.pos || idx > r.pos+skipAheadLimit {
		if err := r.initialize(idx); err != nil {
			return nil, err
		}
	}
	for r.pos < idx {
		if err := r.discardFrame(); err != nil {
			return r.shortRead(err)
		}
	}

	buf := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		return r.shortRead(err)
	}
	r.pos++
	r.lastFrame = buf
	return append([]byte(nil), buf...), nil
}

// shortRead handles the decoder running dry before the declared duration
// ends, which container metadata overshoot makes common near the tail. The
// last good frame is held rather than failing the render.
func (r *Reader) shortRead(err error) ([]byte, error) {
	if r.lastFrame == nil {
		return nil, &clip.ResourceError{
			Op:     "decode",
			Path:   r.path,
			Stderr: r.stderr.String(),
			Err:    err,
		}
	}
	r.logger.Warn().Err(err).Int64("frame", r.pos).Msg("short read, holding last frame")
	return append([]byte(nil), r.lastFrame...), nil
}

func (r *Reader) discardFrame() error {
	buf := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		return err
	}
	r.pos++
	r.lastFrame = buf
	return nil
}

// initialize (re)spawns the decoder positioned at frame idx. Seeking splits
// the offset: a fast input seek lands up to a second early and an accurate
// output-side seek covers the remainder, which keeps seeks quick without
// landing on the wrong frame.
func (r *Reader) initialize(idx int64) error {
	r.stop()

	start := float64(idx) / r.info.FPS
	args := []string{"-hide_banner", "-loglevel", "error"}
	if start > 0 {
		offset := start
		if offset > 1 {
			offset = 1
		}
		args = append(args,
			"-ss", util.FormatDuration(time.Duration((start-offset)*float64(time.Second))),
			"-i", r.path,
			"-ss", util.FormatDuration(time.Duration(offset*float64(time.Second))),
		)
	} else {
		args = append(args, "-i", r.path)
	}
	args = append(args,
		"-f", "image2pipe",
		"-pix_fmt", DefaultPixFmt,
		"-vcodec", "rawvideo",
		"-an",
		"pipe:1",
	)

	r.logger.Debug().Int64("frame", idx).Strs("args", args).Msg("spawning decoder")
	cmd := exec.Command(r.ffmpegPath, args...)
	r.stderr = newTailBuffer(stderrTailSize)
	cmd.Stderr = r.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &clip.ResourceError{Op: "spawn decoder", Path: r.path, Err: err}
	}
	r.cmd = cmd
	r.stdout = stdout
	r.pos = idx
	r.lastFrame = nil
	return nil
}

// stop kills any running decoder process and reaps it.
func (r *Reader) stop() {
	if r.cmd == nil {
		return
	}
	r.stdout.Close()
	r.cmd.Process.Kill()
	r.cmd.Wait()
	r.cmd = nil
	r.stdout = nil
}

// Close releases the decoder process. Safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.stop()
	return nil
}
