package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Stack owns the portaudio runtime and opens capture and playback streams
// on the default devices.
type Stack struct {
	FramesPerBuffer int

	initialized bool
	mutex       sync.RWMutex
}

func (this *Stack) Initialize() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.initialized {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	this.initialized = true
	return nil
}

func (this *Stack) Dispose() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if !this.initialized {
		return nil
	}

	this.initialized = false
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}

	return nil
}

func (this *Stack) framesPerBuffer() int {
	if v := this.FramesPerBuffer; v > 0 {
		return v
	}
	return DefaultFramesPerBuffer
}

func (this *Stack) OpenCapture(format Format) (Capture, error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	if !this.initialized {
		return nil, fmt.Errorf("not initialized")
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	frames := this.framesPerBuffer()
	buf := make([]int16, frames*format.Channels)
	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), frames, buf)
	if err != nil {
		return nil, fmt.Errorf("cannot open microphone with %v: %w", format, err)
	}

	return &Microphone{
		format:  format,
		stream:  stream,
		samples: buf,
		bytes:   make([]byte, 0, len(buf)*2),
	}, nil
}

func (this *Stack) OpenPlayback(format Format) (*Player, error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	if !this.initialized {
		return nil, fmt.Errorf("not initialized")
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	frames := this.framesPerBuffer()
	buf := make([]int16, frames*format.Channels)
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), frames, buf)
	if err != nil {
		return nil, fmt.Errorf("cannot open speaker with %v: %w", format, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("cannot start speaker: %w", err)
	}

	return &Player{
		stream:  stream,
		samples: buf,
	}, nil
}
