package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/audio"
	"github.com/blaubaer/baby-monitor/pkg/common"
	"github.com/blaubaer/baby-monitor/pkg/discovery"
	"github.com/blaubaer/baby-monitor/pkg/parent"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

var ErrNoOutput = errors.New("neither --output nor --play was provided")

// Listen is the parent device: it receives the stream of a baby monitor
// and writes it to a file, stdout and/or the speaker.
type Listen struct {
	AudioStack audio.Stack
	Browser    discovery.Browser

	conf  parent.Configuration
	audio audio.Configuration
}

func (this *Listen) SetupConfiguration(using common.FlagHolder) {
	this.conf.SetupConfiguration(using)
	this.audio.SetupConfiguration(using)
}

func (this *Listen) Run(ctx context.Context) (rErr error) {
	var sinks []io.Writer
	closeAll := func(c io.Closer, what string) {
		if err := c.Close(); err != nil && rErr == nil {
			rErr = fmt.Errorf("cannot close %s: %w", what, err)
		}
	}

	switch this.conf.Output {
	case "":
	case "-":
		sinks = append(sinks, os.Stdout)
	default:
		f, err := os.OpenFile(this.conf.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("cannot open output file %q: %w", this.conf.Output, err)
		}
		defer closeAll(f, this.conf.Output)
		sinks = append(sinks, f)
	}

	if this.conf.Play {
		this.AudioStack.FramesPerBuffer = this.audio.FramesPerBuffer
		if err := this.AudioStack.Initialize(); err != nil {
			return err
		}
		defer func() {
			if err := this.AudioStack.Dispose(); err != nil && rErr == nil {
				rErr = err
			}
		}()
		player, err := this.AudioStack.OpenPlayback(this.audio.Format())
		if err != nil {
			return err
		}
		defer closeAll(player, "speaker")
		sinks = append(sinks, player)
	}

	if len(sinks) == 0 {
		return ErrNoOutput
	}

	browser := this.Browser
	if browser == nil {
		browser = discovery.ZeroconfBrowser{}
	}

	l := parent.Listener{
		Browser:        browser,
		Name:           this.conf.Name,
		Sink:           io.MultiWriter(sinks...),
		Analyzer:       volume.NewAnalyzer(),
		ReconnectDelay: this.conf.ReconnectDelay,
		ReportInterval: parent.DefaultReportInterval,
	}

	log.With("format", this.audio.Format()).
		With("output", this.conf.Output).
		With("play", this.conf.Play).
		Info("Listening for baby monitor.")

	return l.Run(ctx)
}
