package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	log "github.com/echocat/slf4g"
	"github.com/echocat/slf4g/native"
	"github.com/echocat/slf4g/native/consumer"
	"github.com/echocat/slf4g/native/facade/value"
	"github.com/echocat/slf4g/native/formatter"

	"github.com/blaubaer/baby-monitor/pkg/app"
	"github.com/blaubaer/baby-monitor/pkg/console"
)

func main() {
	logs := console.NewLogBuffer(console.DefaultLogBufferLines, console.DefaultLogBufferLineLength)
	// stdout is reserved for the stream of "listen --output -".
	out := console.NewOutput(os.Stderr)
	consumer.Default = consumer.NewWriter(teeWriter{out, logs})

	lv := value.NewProvider(native.DefaultProvider)
	lv.Consumer.Formatter.Codec = value.MappingFormatterCodec{
		"text": formatter.NewText(func(v *formatter.Text) {
			bv := true
			v.AllowMultiLineMessage = &bv
			v.MultiLineMessageAfterFields = &bv
		}),
		"json": formatter.NewJson(),
	}

	cmd := kingpin.New("baby-monitor", "Streams the microphone to a parent device in the local network.")

	monitor := app.NewApp()
	monitor.Logs = logs
	monitor.Output = out
	monitorCmd := cmd.Command("monitor", "Run as the child device: advertise and stream the microphone.").
		Default().
		Action(func(*kingpin.ParseContext) error {
			if err := monitor.Initialize(); err != nil {
				return err
			}
			defer func() {
				if err := monitor.Dispose(); err != nil {
					log.WithError(err).
						Warn("Cannot dispose baby monitor.")
				}
			}()
			return monitor.Run(interruptibleContext())
		})
	monitor.SetupConfiguration(monitorCmd)

	var listen app.Listen
	listenCmd := cmd.Command("listen", "Run as the parent device: find the baby monitor and receive its stream.").
		Action(func(*kingpin.ParseContext) error {
			return listen.Run(interruptibleContext())
		})
	listen.SetupConfiguration(listenCmd)

	cmd.Flag("log.level", "").
		SetValue(lv.Level)
	cmd.Flag("log.format", "").
		Default("text").
		SetValue(lv.Consumer.Formatter)
	cmd.Flag("log.color", "").
		Default("auto").
		SetValue(lv.Consumer.Formatter.ColorMode)

	kingpin.MustParse(cmd.Parse(os.Args[1:]))
}

func interruptibleContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		log.Info("Terminated. Going down...")
		cancel()
	}()
	return ctx
}

// teeWriter writes the log to the terminal and keeps it for the console's
// logs command.
type teeWriter struct {
	terminal *console.Output
	buffer   *console.LogBuffer
}

func (this teeWriter) Write(p []byte) (int, error) {
	_, _ = this.buffer.Write(p)
	return this.terminal.Write(p)
}
