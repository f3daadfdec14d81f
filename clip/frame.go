package clip

import (
	"image"
	"image/color"
)

// Channel counts for Frame buffers.
const (
	ChannelsMask = 1 // single channel, 0..255 maps to opacity 0..1
	ChannelsRGB  = 3
	ChannelsRGBA = 4
)

// Frame is one sampled raster at a timestamp: row-major, 8 bits per channel.
// Frames are produced on demand and never cached by clips; callers that need
// random-access replay must keep their own copies.
type Frame struct {
	W, H     int
	Channels int
	Pix      []uint8
}

// NewFrame allocates a zeroed (black / transparent / fully masked-out) frame.
func NewFrame(w, h, channels int) *Frame {
	return &Frame{W: w, H: h, Channels: channels, Pix: make([]uint8, w*h*channels)}
}

// NewColorFrame allocates a frame filled with a solid RGB color.
func NewColorFrame(w, h int, c color.RGBA) *Frame {
	f := NewFrame(w, h, ChannelsRGB)
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i] = c.R
		f.Pix[i+1] = c.G
		f.Pix[i+2] = c.B
	}
	return f
}

// NewMaskFrame allocates a single-channel frame at a uniform opacity in [0,1].
func NewMaskFrame(w, h int, opacity float64) *Frame {
	f := NewFrame(w, h, ChannelsMask)
	v := clampByte(opacity * 255)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

// Clone returns a deep copy. Transforms that write in place must clone first;
// parent frames may be shared across composite branches.
func (f *Frame) Clone() *Frame {
	dup := &Frame{W: f.W, H: f.H, Channels: f.Channels, Pix: make([]uint8, len(f.Pix))}
	copy(dup.Pix, f.Pix)
	return dup
}

// Offset returns the index of pixel (x, y) in Pix.
func (f *Frame) Offset(x, y int) int {
	return (y*f.W + x) * f.Channels
}

// ToImage converts the frame to a stdlib image for resampling and encoding.
// Mask frames become grayscale, RGB/RGBA frames become RGBA.
func (f *Frame) ToImage() image.Image {
	switch f.Channels {
	case ChannelsMask:
		img := image.NewGray(image.Rect(0, 0, f.W, f.H))
		copy(img.Pix, f.Pix)
		return img
	case ChannelsRGBA:
		img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
		copy(img.Pix, f.Pix)
		return img
	default:
		img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
		for p, q := 0, 0; p < len(f.Pix); p, q = p+3, q+4 {
			img.Pix[q] = f.Pix[p]
			img.Pix[q+1] = f.Pix[p+1]
			img.Pix[q+2] = f.Pix[p+2]
			img.Pix[q+3] = 0xff
		}
		return img
	}
}

// FrameFromImage converts a decoded image into a frame with the given channel
// count. RGBA sources keep their alpha only when channels is ChannelsRGBA.
func FrameFromImage(img image.Image, channels int) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	f := NewFrame(w, h, channels)
	if gray, ok := img.(*image.Gray); ok && channels == ChannelsMask {
		copy(f.Pix, gray.Pix)
		return f
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			switch channels {
			case ChannelsMask:
				f.Pix[i] = uint8(a >> 8)
				i++
			case ChannelsRGBA:
				f.Pix[i] = uint8(r >> 8)
				f.Pix[i+1] = uint8(g >> 8)
				f.Pix[i+2] = uint8(bl >> 8)
				f.Pix[i+3] = uint8(a >> 8)
				i += 4
			default:
				f.Pix[i] = uint8(r >> 8)
				f.Pix[i+1] = uint8(g >> 8)
				f.Pix[i+2] = uint8(bl >> 8)
				i += 3
			}
		}
	}
	return f
}

// AudioBlock is a block of interleaved PCM samples in [-1, 1].
type AudioBlock struct {
	SampleRate int
	Channels   int
	Samples    []float64
}

// NewAudioBlock allocates a silent block of n sample frames.
func NewAudioBlock(n, sampleRate, channels int) *AudioBlock {
	return &AudioBlock{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([]float64, n*channels),
	}
}

// Len returns the number of sample frames (samples per channel).
func (b *AudioBlock) Len() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Clone returns a deep copy of the block.
func (b *AudioBlock) Clone() *AudioBlock {
	dup := &AudioBlock{SampleRate: b.SampleRate, Channels: b.Channels, Samples: make([]float64, len(b.Samples))}
	copy(dup.Samples, b.Samples)
	return dup
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
