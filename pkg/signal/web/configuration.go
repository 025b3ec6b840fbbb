package web

import (
	"time"

	"github.com/blaubaer/baby-monitor/pkg/common"
)

const (
	DefaultListen       = ":8080"
	DefaultWriteTimeout = 5 * time.Second
)

func NewConfiguration() Configuration {
	return Configuration{
		Listen: DefaultListen,
	}
}

type Configuration struct {
	Listen string `yaml:"listen,omitempty"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("signal.web.listen", "Address the web signal should listen to for status, volume graph and live updates.").
		Envar("BM_SIGNAL_WEB_LISTEN").
		StringVar(&this.Listen)
}
