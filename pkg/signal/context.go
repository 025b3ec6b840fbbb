package signal

import (
	"github.com/blaubaer/baby-monitor/pkg/session"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

type Context interface {
	Status() session.Status
	Volume() *volume.Analyzer
}
