package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	DefaultSampleRate      = 11025
	DefaultFramesPerBuffer = 1024
)

// Format describes the PCM layout on the wire: signed, little endian,
// interleaved.
type Format struct {
	SampleRate int `yaml:"sampleRate,omitempty"`
	Channels   int `yaml:"channels,omitempty"`
	BitDepth   int `yaml:"bitDepth,omitempty"`
}

func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

func (this Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", this.SampleRate, this.Channels, this.BitDepth)
}

func (this Format) Validate() error {
	if this.SampleRate <= 0 {
		return fmt.Errorf("illegal sample rate: %d", this.SampleRate)
	}
	if this.Channels <= 0 {
		return fmt.Errorf("illegal number of channels: %d", this.Channels)
	}
	if this.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d", this.BitDepth)
	}
	return nil
}

func (this Format) BytesPerFrame() int {
	return this.Channels * this.BitDepth / 8
}

// MinBufferSize is the number of bytes one capture read delivers.
func (this Format) MinBufferSize(framesPerBuffer int) int {
	return framesPerBuffer * this.BytesPerFrame()
}

func encodeSamples(dst []byte, samples []int16) []byte {
	dst = dst[:0]
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

func decodeSamples(dst []int16, src []byte) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return n
}
