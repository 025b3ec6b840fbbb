package facade

import (
	"github.com/blaubaer/baby-monitor/pkg/common"
	"github.com/blaubaer/baby-monitor/pkg/signal"
	"github.com/blaubaer/baby-monitor/pkg/signal/web"
)

func NewConfiguration() Configuration {
	return Configuration{
		Types: signal.Types{signal.TypeDefault},
		Web:   web.NewConfiguration(),
	}
}

type Configuration struct {
	Types signal.Types      `yaml:"types,omitempty"`
	Web   web.Configuration `yaml:"web,omitempty"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("signal", "Comma separated signals to use. All possible values: "+signal.AllTypes.String()).
		Envar("BM_SIGNAL").
		SetValue(&this.Types)

	this.Web.SetupConfiguration(using)
}
