package audio

import (
	"io"
)

// Capture is an opened capture device. Read blocks until the next chunk is
// available.
type Capture interface {
	io.Reader
	Start() error
	Stop() error
	Close() error

	// MinBufferSize is the size in bytes of a single chunk.
	MinBufferSize() int
}

type Source interface {
	OpenCapture(Format) (Capture, error)
}
