package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"dario.cat/mergo"
	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/audio"
	"github.com/blaubaer/baby-monitor/pkg/common"
	"github.com/blaubaer/baby-monitor/pkg/console"
	"github.com/blaubaer/baby-monitor/pkg/discovery"
	"github.com/blaubaer/baby-monitor/pkg/network"
	"github.com/blaubaer/baby-monitor/pkg/server"
	"github.com/blaubaer/baby-monitor/pkg/session"
	"github.com/blaubaer/baby-monitor/pkg/signal/facade"
	"github.com/blaubaer/baby-monitor/pkg/stream"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

func NewApp() *App {
	return &App{
		config: NewConfiguration(),
	}
}

// App is the child device: it advertises itself, streams the microphone to
// the parent device and reports its status through the signals.
type App struct {
	AudioStack        audio.Stack
	Signal            facade.Facade
	ConfigurationFile string

	// Logs and Output are handed to the interactive console, if enabled.
	Logs   *console.LogBuffer
	Output *console.Output

	// Source, Registrar and Binder replace the real devices if set.
	Source    audio.Source
	Registrar discovery.Registrar
	Binder    server.Binder

	configFromFlags Configuration
	config          Configuration
	analyzer        *volume.Analyzer
	controller      *session.Controller
	initialized     bool
	mutex           sync.Mutex
}

func (this *App) SetupConfiguration(using common.FlagHolder) {
	this.configFromFlags.SetupConfiguration(using)

	using.Flag("configuration", "Defines the file from which the configuration should be loaded and/or stored to.").
		Short('c').
		Envar("BM_CONFIGURATION").
		StringVar(&this.ConfigurationFile)
}

func (this *App) Configuration() Configuration {
	return this.config
}

func (this *App) Controller() *session.Controller {
	return this.controller
}

func (this *App) Analyzer() *volume.Analyzer {
	return this.analyzer
}

func (this *App) Initialize() (rErr error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.initialized {
		return nil
	}

	success := false
	defer func() {
		if !success {
			if err := this.dispose(); err != nil && rErr == nil {
				rErr = err
			}
		}
	}()

	if err := this.config.loadFromFile(this.configurationFile(), true); err != nil {
		return err
	}
	if err := mergo.Merge(&this.config, this.configFromFlags, mergo.WithOverride); err != nil {
		return fmt.Errorf("cannot merge configuration: %w", err)
	}
	if err := this.config.Validate(); err != nil {
		return err
	}

	this.analyzer = volume.NewAnalyzer()

	source := this.Source
	if source == nil {
		this.AudioStack.FramesPerBuffer = this.config.Audio.FramesPerBuffer
		if err := this.AudioStack.Initialize(); err != nil {
			return err
		}
		source = &this.AudioStack
	}
	registrar := this.Registrar
	if registrar == nil {
		registrar = discovery.ZeroconfRegistrar{}
	}
	binder := this.Binder
	if binder == nil {
		binder = server.TCPBinder{}
	}

	address, ok, err := network.LocalAddress()
	if err != nil {
		log.WithError(err).
			Warn("Cannot determine local address.")
	} else if !ok {
		log.Warn("No local network address found. Is the wifi connected?")
	}

	advertiser := &discovery.Advertiser{
		Registrar: registrar,
		Name:      this.config.ServiceName,
	}
	this.controller = &session.Controller{
		Server: &server.Server{
			Binder:     binder,
			Advertiser: advertiser,
			RetryDelay: this.config.BindRetryDelay,
		},
		Advertiser: advertiser,
		Streamer: &stream.Streamer{
			Source:   source,
			Format:   this.config.Audio.Format(),
			Observer: this.analyzer,
		},
		InitialPort: this.config.InitialPort,
		Address:     address,
		OnStatus:    this.onStatus,
	}

	if err := this.Signal.Initialize(&this.config.Signal, this.analyzer); err != nil {
		return err
	}
	log.With("signals", this.Signal.GetTypes()).
		Debug("Signals initialized.")

	if err := this.saveConf(false); err != nil {
		return err
	}

	this.initialized = true
	success = true
	return nil
}

// Run starts the session and keeps it running until ctx is done or, in
// interactive mode, the user quits.
func (this *App) Run(ctx context.Context) error {
	if this.controller == nil {
		return fmt.Errorf("not initialized")
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		this.controller.Run(loopCtx)
	}()
	defer func() {
		cancelLoop()
		<-loopDone
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := this.controller.Start(ctx); err != nil {
		return err
	}
	defer this.controller.Stop()

	go this.updateLoop(ctx)

	if this.config.Interactive {
		c := console.Console{
			Controller: this.controller,
			Analyzer:   this.analyzer,
			Logs:       this.Logs,
			Output:     this.Output,
		}
		return c.Run(ctx)
	}

	<-ctx.Done()
	return nil
}

func (this *App) updateLoop(ctx context.Context) {
	ticker := time.NewTicker(this.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Update loop interrupted.")
			return
		case <-ticker.C:
		}

		if err := this.Signal.Update(this.signalContext(this.controller.Status())); err != nil {
			log.WithError(err).
				Warn("Cannot update signal.")
		}
	}
}

func (this *App) onStatus(status session.Status) {
	if err := this.Signal.Ensure(this.signalContext(status)); err != nil {
		log.WithError(err).
			Warn("It was not possible to ensure signal state.")
	}
}

func (this *App) signalContext(status session.Status) *signalContext {
	return &signalContext{status, this.analyzer}
}

type signalContext struct {
	status   session.Status
	analyzer *volume.Analyzer
}

func (this *signalContext) Status() session.Status {
	return this.status
}

func (this *signalContext) Volume() *volume.Analyzer {
	return this.analyzer
}

func (this *App) configurationFile() string {
	if v := this.ConfigurationFile; v != "" {
		return v
	}
	return defaultConfigurationFile()
}

func (this *App) saveConf(always bool) error {
	if this.config.PreventAutoSave {
		log.Debug("Automatically save of configuration disabled.")
		return nil
	}

	fn := this.configurationFile()
	if !always {
		_, err := os.Stat(fn)
		if os.IsNotExist(err) {
			log.With("file", fn).Info("Configuration absent.")
			// Ok, we should save...
		} else if err != nil {
			return err
		} else {
			// Does exist, skip...
			return nil
		}
	}

	if err := this.config.saveToFile(fn); err != nil {
		return err
	}

	log.With("file", fn).Info("Configuration saved.")

	return nil
}

func (this *App) Dispose() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	this.initialized = false
	return this.dispose()
}

func (this *App) dispose() (rErr error) {
	defer func() {
		if err := this.AudioStack.Dispose(); err != nil && rErr == nil {
			rErr = err
		}
	}()

	defer func() {
		if err := this.Signal.Dispose(); err != nil && rErr == nil {
			rErr = err
		}
	}()

	if c := this.controller; c != nil {
		c.Stop()
	}
	return this.Signal.Ensure(this.signalContext(session.Status{State: session.StateIdle}))
}
