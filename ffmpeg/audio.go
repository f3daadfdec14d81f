package ffmpeg

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/pkg/util"
)

// AudioReader decodes a file's audio stream as s16le PCM at a fixed output
// rate and channel count. Like the video Reader it is a sequential decoder
// behind a mutex: backwards requests or jumps beyond one second of skipping
// reinitialize the process with a seek.
type AudioReader struct {
	logger     zerolog.Logger
	ffmpegPath string
	path       string
	rate       int
	channels   int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	pos    int64 // index of the next sample frame stdout will yield
	closed bool
}

// NewAudioReader prepares a PCM decoder for the file's audio stream.
func NewAudioReader(logger zerolog.Logger, path string, info *Info, rate, channels int) (*AudioReader, error) {
	if info == nil {
		return nil, fmt.Errorf("probe info is required")
	}
	if !info.HasAudio {
		return nil, fmt.Errorf("%s has no audio stream", path)
	}
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid output format %dHz %dch", rate, channels)
	}
	ffmpegPath, err := lookupFFmpeg()
	if err != nil {
		return nil, err
	}
	return &AudioReader{
		logger:     logger.With().Str("component", "ffmpeg-audio").Str("file", path).Logger(),
		ffmpegPath: ffmpegPath,
		path:       path,
		rate:       rate,
		channels:   channels,
	}, nil
}

// SampleRate returns the decoder's output rate.
func (r *AudioReader) SampleRate() int { return r.rate }

// Channels returns the decoder's output channel count.
func (r *AudioReader) Channels() int { return r.channels }

// ReadSamplesAt decodes n interleaved sample frames starting at time t.
// Running past the end of the stream yields silence for the remainder.
func (r *AudioReader) ReadSamplesAt(t float64, n int) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("audio reader is closed")
	}

	idx := int64(t*float64(r.rate) + 0.5)
	if r.cmd == nil || idx < r.pos || idx > r.pos+int64(r.rate) {
		if err := r.initialize(idx); err != nil {
			return nil, err
		}
	}
	if idx > r.pos {
		skip := make([]byte, (idx-r.pos)*int64(r.channels)*2)
		if _, err := io.ReadFull(r.stdout, skip); err != nil {
			// Ran dry while skipping; everything left is silence.
			r.pos = idx
			return make([]float64, n*r.channels), nil
		}
		r.pos = idx
	}

	buf := make([]byte, n*r.channels*2)
	read, err := io.ReadFull(r.stdout, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, &clip.ResourceError{
			Op:     "decode audio",
			Path:   r.path,
			Stderr: r.stderr.String(),
			Err:    err,
		}
	}
	r.pos += int64(read / (r.channels * 2))

	out := make([]float64, n*r.channels)
	for i := 0; i < read/2; i++ {
		out[i] = float64(int16(binary.LittleEndian.Uint16(buf[i*2:]))) / 32768
	}
	return out, nil
}

func (r *AudioReader) initialize(idx int64) error {
	r.stop()

	start := float64(idx) / float64(r.rate)
	args := []string{"-hide_banner", "-loglevel", "error"}
	if start > 0 {
		args = append(args, "-ss", util.FormatDuration(time.Duration(start*float64(time.Second))))
	}
	args = append(args,
		"-i", r.path,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(r.rate),
		"-ac", strconv.Itoa(r.channels),
		"pipe:1",
	)

	r.logger.Debug().Int64("sample", idx).Strs("args", args).Msg("spawning audio decoder")
	cmd := exec.Command(r.ffmpegPath, args...)
	r.stderr = newTailBuffer(stderrTailSize)
	cmd.Stderr = r.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &clip.ResourceError{Op: "spawn audio decoder", Path: r.path, Err: err}
	}
	r.cmd = cmd
	r.stdout = stdout
	r.pos = idx
	return nil
}

func (r *AudioReader) stop() {
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
func (r *AudioReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.stop()
	return nil
}
