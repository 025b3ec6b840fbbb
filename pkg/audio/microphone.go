package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

type Microphone struct {
	format  Format
	stream  *portaudio.Stream
	samples []int16
	bytes   []byte
	pending []byte
}

func (this *Microphone) Start() error {
	if err := this.stream.Start(); err != nil {
		return fmt.Errorf("cannot start microphone: %w", err)
	}
	return nil
}

func (this *Microphone) Stop() error {
	return this.stream.Stop()
}

func (this *Microphone) Close() error {
	return this.stream.Close()
}

func (this *Microphone) MinBufferSize() int {
	return len(this.samples) * 2
}

func (this *Microphone) Read(p []byte) (int, error) {
	if len(this.pending) == 0 {
		if err := this.stream.Read(); err != nil {
			return 0, fmt.Errorf("cannot read from microphone: %w", err)
		}
		this.bytes = encodeSamples(this.bytes, this.samples)
		this.pending = this.bytes
	}
	n := copy(p, this.pending)
	this.pending = this.pending[n:]
	return n, nil
}

// Player plays PCM bytes on the default output device.
type Player struct {
	stream  *portaudio.Stream
	samples []int16
	filled  int
	odd     []byte
}

func (this *Player) Write(p []byte) (int, error) {
	written := len(p)
	if len(this.odd) > 0 {
		p = append(this.odd, p...)
		this.odd = nil
	}
	for len(p) >= 2 {
		n := decodeSamples(this.samples[this.filled:], p)
		this.filled += n
		p = p[n*2:]
		if this.filled == len(this.samples) {
			if err := this.stream.Write(); err != nil {
				return 0, fmt.Errorf("cannot write to speaker: %w", err)
			}
			this.filled = 0
		}
	}
	if len(p) > 0 {
		this.odd = append([]byte(nil), p...)
	}
	return written, nil
}

func (this *Player) Close() error {
	stopErr := this.stream.Stop()
	if err := this.stream.Close(); err != nil {
		return err
	}
	return stopErr
}
