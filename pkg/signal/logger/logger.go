package logger

import (
	"sync"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/session"
	"github.com/blaubaer/baby-monitor/pkg/signal"
)

// Logger reports every status change to the log and, on debug level, the
// volume with each update.
type Logger struct {
	Logger log.Logger

	last  *session.Status
	mutex sync.Mutex
}

func (this *Logger) Initialize() error {
	return nil
}

func (this *Logger) Ensure(ctx signal.Context) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	status := ctx.Status()
	if last := this.last; last != nil && *last == status {
		return nil
	}

	l := this.logger().
		With("state", status.State).
		With("address", status.AddressText())
	if status.ServiceName != "" {
		l = l.With("service", status.ServiceName)
	}
	if status.Port > 0 {
		l = l.With("port", status.Port)
	}
	if status.Activation != "" {
		l = l.With("activation", status.Activation)
	}
	l.Info("Baby monitor is " + status.Text() + ".")

	this.last = &status
	return nil
}

func (this *Logger) Update(ctx signal.Context) error {
	l := this.logger()
	if !l.IsDebugEnabled() {
		return nil
	}
	if a := ctx.Volume(); a != nil && ctx.Status().State == session.StateStreaming {
		l.With("volume", a.Volume()).
			With("maxVolume", a.MaxVolume()).
			Debug("Volume.")
	}
	return nil
}

func (this *Logger) Dispose() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.last = nil
	return nil
}

func (this *Logger) GetType() signal.Type {
	return signal.TypeLog
}

func (this *Logger) logger() log.Logger {
	if v := this.Logger; v != nil {
		return v
	}
	return log.GetLogger("signal")
}
