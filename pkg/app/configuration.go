package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blaubaer/baby-monitor/pkg/audio"
	"github.com/blaubaer/baby-monitor/pkg/common"
	"github.com/blaubaer/baby-monitor/pkg/discovery"
	"github.com/blaubaer/baby-monitor/pkg/server"
	"github.com/blaubaer/baby-monitor/pkg/signal/facade"
)

const DefaultUpdateInterval = 250 * time.Millisecond

func NewConfiguration() Configuration {
	return Configuration{
		InitialPort:    server.DefaultInitialPort,
		ServiceName:    discovery.DefaultServiceName,
		BindRetryDelay: server.DefaultRetryDelay,
		UpdateInterval: DefaultUpdateInterval,

		Audio:  audio.NewConfiguration(),
		Signal: facade.NewConfiguration(),
	}
}

type Configuration struct {
	PreventAutoSave bool `yaml:"preventAutoSave"`
	Interactive     bool `yaml:"interactive,omitempty"`

	InitialPort    int           `yaml:"initialPort,omitempty"`
	ServiceName    string        `yaml:"serviceName,omitempty"`
	BindRetryDelay time.Duration `yaml:"bindRetryDelay,omitempty"`
	UpdateInterval time.Duration `yaml:"updateInterval,omitempty"`

	Audio  audio.Configuration  `yaml:"audio,omitempty"`
	Signal facade.Configuration `yaml:"signal,omitempty"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("preventAutoSave", "If provided configuration will NOT automatically be saved upon changes.").
		Envar("BM_PREVENT_AUTO_SAVE").
		BoolVar(&this.PreventAutoSave)
	using.Flag("interactive", "Operate the baby monitor with an interactive console.").
		Short('i').
		Envar("BM_INTERACTIVE").
		BoolVar(&this.Interactive)
	using.Flag("initialPort", "First port the baby monitor tries to listen on. Following ports are tried if it is taken.").
		Envar("BM_INITIAL_PORT").
		IntVar(&this.InitialPort)
	using.Flag("serviceName", "Name the baby monitor is announced with in the local network.").
		Envar("BM_SERVICE_NAME").
		StringVar(&this.ServiceName)
	using.Flag("bindRetryDelay", "How long to wait before the next port is tried.").
		Envar("BM_BIND_RETRY_DELAY").
		DurationVar(&this.BindRetryDelay)
	using.Flag("updateInterval", "How often the volume is reported to the signals while streaming.").
		Envar("BM_UPDATE_INTERVAL").
		DurationVar(&this.UpdateInterval)

	this.Audio.SetupConfiguration(using)
	this.Signal.SetupConfiguration(using)
}

func (this Configuration) Validate() error {
	// The port is increased on every failed bind, so at least one port
	// above the initial one has to exist.
	if this.InitialPort < 1 || this.InitialPort > 65534 {
		return fmt.Errorf("illegal initial port: %d", this.InitialPort)
	}
	if this.BindRetryDelay < 0 {
		return fmt.Errorf("illegal bind retry delay: %v", this.BindRetryDelay)
	}
	if this.UpdateInterval <= 0 {
		return fmt.Errorf("illegal update interval: %v", this.UpdateInterval)
	}
	return this.Audio.Format().Validate()
}

func (this *Configuration) loadFrom(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(this); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (this *Configuration) loadFromFile(fn string, ignoreNotFound bool) error {
	f, err := os.Open(fn)
	if os.IsNotExist(err) && ignoreNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot open configuration file %q: %w", fn, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := this.loadFrom(f); err != nil {
		return fmt.Errorf("cannot load configuration file %q: %w", fn, err)
	}

	return nil
}

func (this *Configuration) saveTo(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(this)
}

func (this *Configuration) saveToFile(fn string) error {
	_ = os.MkdirAll(filepath.Dir(fn), 0700)

	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot open configuration file %q: %w", fn, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := this.saveTo(f); err != nil {
		return fmt.Errorf("cannot write file %q: %w", fn, err)
	}

	return nil
}

func defaultConfigurationFile() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "baby-monitor", "configuration.yml")
	}
	return "configuration.yml"
}
