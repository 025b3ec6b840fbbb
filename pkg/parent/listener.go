package parent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/common"
	"github.com/blaubaer/baby-monitor/pkg/discovery"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

const receiveBufferSize = 4096

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Listener is the parent side: it looks up the baby monitor, receives its
// stream into Sink and starts over if the connection is lost.
type Listener struct {
	Browser        discovery.Browser
	Dialer         Dialer
	Name           string
	Sink           io.Writer
	Analyzer       *volume.Analyzer
	ReconnectDelay time.Duration
	ReportInterval time.Duration
}

// Run returns nil once ctx is done.
func (this *Listener) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := this.session(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).
				With("retryIn", this.ReconnectDelay).
				Warn("Lost baby monitor.")
		}
		select {
		case <-ctx.Done():
		case <-time.After(this.ReconnectDelay):
		}
	}
	return nil
}

func (this *Listener) session(ctx context.Context) error {
	log.With("type", discovery.ServiceType).
		With("name", this.Name).
		Info("Looking for baby monitor...")

	entry, err := this.Browser.Lookup(ctx, discovery.ServiceType, this.Name)
	if err != nil {
		return fmt.Errorf("cannot find baby monitor: %w", err)
	}

	dialer := this.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: 5 * time.Second}
	}
	conn, err := dialer.DialContext(ctx, "tcp", entry.Address())
	if err != nil {
		return fmt.Errorf("cannot connect to %v at %s: %w", entry.Service, entry.Address(), err)
	}

	log.With("service", entry.Service).
		With("address", entry.Address()).
		Info("Connected to baby monitor.")

	n, err := this.Receive(ctx, conn)
	log.With("service", entry.Service).
		With("received", n).
		Info("Disconnected from baby monitor.")
	if err != nil && !common.IsConnectionGone(err) {
		return err
	}
	return nil
}

// Receive copies the stream from conn until it ends or ctx is done. conn
// is closed afterward.
func (this *Listener) Receive(ctx context.Context, conn net.Conn) (int64, error) {
	rCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-rCtx.Done()
		_ = conn.Close()
	}()

	if this.Analyzer != nil && this.ReportInterval > 0 {
		go this.report(rCtx)
	}

	w := this.Sink
	if w == nil {
		w = io.Discard
	}
	if a := this.Analyzer; a != nil {
		w = io.MultiWriter(w, a)
	}

	n, err := io.CopyBuffer(w, onlyReader{conn}, make([]byte, receiveBufferSize))
	if ctx.Err() != nil {
		return n, nil
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return n, err
}

func (this *Listener) report(ctx context.Context) {
	ticker := time.NewTicker(this.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.With("volume", this.Analyzer.Volume()).
				With("maxVolume", this.Analyzer.MaxVolume()).
				Info("Volume.")
		}
	}
}

// onlyReader hides WriterTo of the connection, so every chunk passes
// through the buffer and the analyzer sees chunks of bounded size.
type onlyReader struct {
	io.Reader
}
