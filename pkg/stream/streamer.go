package stream

import (
	"context"
	"fmt"
	"net"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/audio"
)

// Observer receives every captured chunk after it was written to the
// connection.
type Observer interface {
	Observe(chunk []byte)
}

// Streamer copies raw PCM from the microphone to an accepted connection.
type Streamer struct {
	Source   audio.Source
	Format   audio.Format
	Observer Observer
}

// Serve streams until the connection fails, the capture fails or ctx is
// done. onStreaming is called once the capture device has started. The
// capture device is released on every path.
func (this *Streamer) Serve(ctx context.Context, conn net.Conn, onStreaming func()) error {
	capture, err := this.Source.OpenCapture(this.Format)
	if err != nil {
		return fmt.Errorf("cannot open capture device: %w", err)
	}
	defer func() {
		if err := capture.Close(); err != nil {
			log.WithError(err).
				Warn("Failed to close capture device.")
		}
	}()

	chunkSize := capture.MinBufferSize()
	if chunkSize <= 0 {
		return fmt.Errorf("capture device reports illegal buffer size: %d", chunkSize)
	}
	buf := make([]byte, chunkSize*2)

	if err := capture.Start(); err != nil {
		return err
	}
	defer func() {
		if err := capture.Stop(); err != nil {
			log.WithError(err).
				Warn("Failed to stop capture device.")
		}
	}()

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetWriteBuffer(len(buf)); err != nil {
			log.WithError(err).
				Debug("Cannot adjust socket send buffer size.")
		} else {
			log.With("size", len(buf)).
				Debug("Socket send buffer size adjusted.")
		}
	}

	log.With("format", this.Format).
		With("chunkSize", chunkSize).
		Info("Streaming to parent device.")
	if onStreaming != nil {
		onStreaming()
	}

	for ctx.Err() == nil {
		n, err := capture.Read(buf[:chunkSize])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return err
		}
		if o := this.Observer; o != nil {
			o.Observe(buf[:n])
		}
	}

	return ctx.Err()
}
