package facade

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/signal"
	"github.com/blaubaer/baby-monitor/pkg/signal/logger"
	"github.com/blaubaer/baby-monitor/pkg/signal/web"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

// Facade dispatches to all configured signals. A failing signal does not
// prevent the others from being served.
type Facade struct {
	signals []signal.Signal

	lock sync.RWMutex
}

func (this *Facade) Ensure(c signal.Context) error {
	this.lock.RLock()
	defer this.lock.RUnlock()

	var errs []error
	for _, s := range this.signals {
		if err := s.Ensure(c); err != nil {
			errs = append(errs, fmt.Errorf("cannot ensure signal %v: %w", s.GetType(), err))
		}
	}
	return errors.Join(errs...)
}

func (this *Facade) Update(c signal.Context) error {
	this.lock.RLock()
	defer this.lock.RUnlock()

	var errs []error
	for _, s := range this.signals {
		if err := s.Update(c); err != nil {
			errs = append(errs, fmt.Errorf("cannot update signal %v: %w", s.GetType(), err))
		}
	}
	return errors.Join(errs...)
}

func (this *Facade) Initialize(conf *Configuration, analyzer *volume.Analyzer) (rErr error) {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.signals != nil {
		return nil
	}

	var initialized []signal.Signal
	defer func() {
		if rErr != nil {
			for _, s := range initialized {
				_ = s.Dispose()
			}
		}
	}()

	types := conf.Types
	if len(types) == 0 {
		types = signal.Types{signal.TypeDefault}
	}
	for _, t := range types {
		switch t {
		case signal.TypeLog:
			var buf logger.Logger
			if err := buf.Initialize(); err != nil {
				return err
			}
			initialized = append(initialized, &buf)
		case signal.TypeWeb:
			var buf web.Web
			if err := buf.Initialize(&conf.Web, analyzer); err != nil {
				return err
			}
			initialized = append(initialized, &buf)
		default:
			return fmt.Errorf("unsupported signal type: %v", t)
		}
	}

	log.With("signals", types).
		Debug("Signals initialized.")
	this.signals = initialized
	return nil
}

func (this *Facade) Dispose() error {
	this.lock.Lock()
	defer this.lock.Unlock()

	defer func() {
		this.signals = nil
	}()

	var errs []error
	for _, s := range this.signals {
		if err := s.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (this *Facade) GetTypes() signal.Types {
	this.lock.RLock()
	defer this.lock.RUnlock()

	result := make(signal.Types, len(this.signals))
	for i, s := range this.signals {
		result[i] = s.GetType()
	}
	return result
}
