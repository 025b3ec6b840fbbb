package parent

import (
	"time"

	"github.com/blaubaer/baby-monitor/pkg/common"
)

const (
	DefaultReconnectDelay = time.Second
	DefaultReportInterval = 5 * time.Second
)

type Configuration struct {
	Name           string
	Output         string
	Play           bool
	ReconnectDelay time.Duration
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("name", "Only connect to the baby monitor announced with this name.").
		Envar("BM_LISTEN_NAME").
		StringVar(&this.Name)
	using.Flag("output", "File the received PCM stream should be written to. Use - for stdout.").
		Short('o').
		Envar("BM_LISTEN_OUTPUT").
		StringVar(&this.Output)
	using.Flag("play", "Play the received stream on the default output device.").
		Envar("BM_LISTEN_PLAY").
		BoolVar(&this.Play)
	using.Flag("reconnectDelay", "How long to wait before looking for the baby monitor again after the connection was lost.").
		Envar("BM_LISTEN_RECONNECT_DELAY").
		Default(DefaultReconnectDelay.String()).
		DurationVar(&this.ReconnectDelay)
}
