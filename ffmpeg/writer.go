package ffmpeg

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/harry-hain/moviepy/clip"
)

// WriterOptions configures the encoder process.
type WriterOptions struct {
	OutputPath  string
	Width       int
	Height      int
	FPS         float64
	PixelFormat string // raw input format, default rgb24
	Codec       string
	CRF         int
	Preset      string
	Bitrate     string // optional, e.g. "4M"; overrides CRF when set

	// Audio input, enabled by HasAudio. PCM arrives as s16le on a
	// dedicated pipe so the two streams never interleave on one fd.
	HasAudio        bool
	AudioSampleRate int
	AudioChannels   int
	AudioBitrate    string

	ExtraArgs []string
}

func (o *WriterOptions) applyDefaults() {
	if o.PixelFormat == "" {
		o.PixelFormat = DefaultPixFmt
	}
	if o.Codec == "" {
		o.Codec = DefaultVideoCodec
	}
	if o.CRF == 0 {
		o.CRF = DefaultCRF
	}
	if o.Preset == "" {
		o.Preset = DefaultPreset
	}
	if o.AudioSampleRate == 0 {
		o.AudioSampleRate = 44100
	}
	if o.AudioChannels == 0 {
		o.AudioChannels = 2
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = "192k"
	}
}

// Writer streams raw frames and PCM into one ffmpeg encoder process. Video
// goes to the process's stdin; audio, when enabled, to an extra pipe passed
// as fd 3. Stderr is drained concurrently into a bounded tail so a stalled
// diagnostic stream can never deadlock against frame writes.
type Writer struct {
	logger     zerolog.Logger
	opts       WriterOptions
	ffmpegPath string

	cmd      *exec.Cmd
	videoIn  *bufio.Writer
	videoRaw io.WriteCloser
	audioIn  *bufio.Writer
	audioRaw *os.File
	stderr   *tailBuffer

	frameSize int
	closed    bool
}

// NewWriter validates options and locates the ffmpeg binary. The process is
// not spawned until Start.
func NewWriter(logger zerolog.Logger, opts WriterOptions) (*Writer, error) {
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", opts.FPS)
	}
	opts.applyDefaults()

	ffmpegPath, err := lookupFFmpeg()
	if err != nil {
		return nil, err
	}

	channels := 3
	if opts.PixelFormat == "rgba" {
		channels = 4
	}
	return &Writer{
		logger:     logger.With().Str("component", "ffmpeg-writer").Logger(),
		opts:       opts,
		ffmpegPath: ffmpegPath,
		frameSize:  opts.Width * opts.Height * channels,
	}, nil
}

// buildArgs assembles the full encoder command line.
func (w *Writer) buildArgs() []string {
	o := w.opts
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", o.PixelFormat,
		"-video_size", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-framerate", strconv.FormatFloat(o.FPS, 'f', -1, 64),
		"-i", "pipe:0",
	}
	if o.HasAudio {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(o.AudioSampleRate),
			"-ac", strconv.Itoa(o.AudioChannels),
			"-i", "pipe:3",
			"-map", "0:v", "-map", "1:a",
			"-c:a", DefaultAudioCodec,
			"-b:a", o.AudioBitrate,
		)
	}
	args = append(args, "-c:v", o.Codec, "-preset", o.Preset, "-pix_fmt", DefaultOutPixFmt)
	if o.Bitrate != "" {
		args = append(args, "-b:v", o.Bitrate)
	} else {
		args = append(args, "-crf", strconv.Itoa(o.CRF))
	}
	args = append(args, o.ExtraArgs...)
	return append(args, o.OutputPath)
}

// Start spawns the encoder and acquires its input pipes.
func (w *Writer) Start(ctx context.Context) error {
	if w.cmd != nil {
		return fmt.Errorf("encoder already started")
	}
	args := w.buildArgs()
	w.logger.Debug().Strs("args", args).Msg("spawning encoder")

	cmd := exec.CommandContext(ctx, w.ffmpegPath, args...)
	w.stderr = newTailBuffer(stderrTailSize)
	cmd.Stderr = w.stderr

	videoIn, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	var audioRead *os.File
	if w.opts.HasAudio {
		r, wr, err := os.Pipe()
		if err != nil {
			videoIn.Close()
			return fmt.Errorf("failed to create audio pipe: %w", err)
		}
		audioRead = r
		w.audioRaw = wr
		w.audioIn = bufio.NewWriterSize(wr, 64*1024)
		cmd.ExtraFiles = []*os.File{audioRead}
	}

	if err := cmd.Start(); err != nil {
		videoIn.Close()
		if audioRead != nil {
			audioRead.Close()
			w.audioRaw.Close()
		}
		return &clip.ResourceError{Op: "spawn encoder", Path: w.opts.OutputPath, Err: err}
	}
	if audioRead != nil {
		// Parent's copy of the read end; the child holds its own.
		audioRead.Close()
	}

	w.cmd = cmd
	w.videoRaw = videoIn
	w.videoIn = bufio.NewWriterSize(videoIn, 256*1024)
	w.logger.Info().Str("output", w.opts.OutputPath).Msg("encoder started")
	return nil
}

// WriteFrame serializes one raster frame to the encoder's video pipe. The
// frame must match the declared size and pixel format.
func (w *Writer) WriteFrame(f *clip.Frame) error {
	if w.cmd == nil {
		return fmt.Errorf("encoder not started")
	}
	if len(f.Pix) != w.frameSize {
		return &clip.FormatMismatchError{
			Op:   "write frame",
			Want: fmt.Sprintf("%dx%d %s (%d bytes)", w.opts.Width, w.opts.Height, w.opts.PixelFormat, w.frameSize),
			Got:  fmt.Sprintf("%dx%d %dch (%d bytes)", f.W, f.H, f.Channels, len(f.Pix)),
		}
	}
	if _, err := w.videoIn.Write(f.Pix); err != nil {
		return &clip.IOError{Op: "write video pipe", Err: err}
	}
	return nil
}

// WriteAudio serializes a PCM block as s16le to the encoder's audio pipe.
func (w *Writer) WriteAudio(b *clip.AudioBlock) error {
	if w.cmd == nil {
		return fmt.Errorf("encoder not started")
	}
	if !w.opts.HasAudio {
		return fmt.Errorf("encoder has no audio input")
	}
	if b.SampleRate != w.opts.AudioSampleRate || b.Channels != w.opts.AudioChannels {
		return &clip.FormatMismatchError{
			Op:   "write audio",
			Want: fmt.Sprintf("%dHz %dch", w.opts.AudioSampleRate, w.opts.AudioChannels),
			Got:  fmt.Sprintf("%dHz %dch", b.SampleRate, b.Channels),
		}
	}
	buf := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	if _, err := w.audioIn.Write(buf); err != nil {
		return &clip.IOError{Op: "write audio pipe", Err: err}
	}
	return nil
}

// Close flushes and shuts the input pipes, signalling end of stream.
func (w *Writer) Close() error {
	if w.cmd == nil || w.closed {
		return nil
	}
	w.closed = true
	var firstErr error
	if err := w.videoIn.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.videoRaw.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if w.audioIn != nil {
		if err := w.audioIn.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := w.audioRaw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return &clip.IOError{Op: "close encoder input", Err: firstErr}
	}
	return nil
}

// Wait reaps the encoder process. A non-zero exit is reported with the tail
// of its stderr output.
func (w *Writer) Wait() error {
	if w.cmd == nil {
		return fmt.Errorf("encoder not started")
	}
	if err := w.cmd.Wait(); err != nil {
		return &clip.ResourceError{
			Op:     "encode",
			Path:   w.opts.OutputPath,
			Stderr: w.stderr.String(),
			Err:    err,
		}
	}
	w.logger.Info().Str("output", w.opts.OutputPath).Msg("encoder finished")
	return nil
}
