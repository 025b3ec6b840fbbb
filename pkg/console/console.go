package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/session"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

const (
	DefaultPrompt = "baby-monitor> "
	defaultLogs   = 20
	volumeBarSize = 40
)

var ErrQuit = errors.New("quit")

// Controller is what the console is able to operate.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Status() session.Status
}

// Console is an interactive command line to operate the baby monitor while
// it runs.
type Console struct {
	Controller Controller
	Analyzer   *volume.Analyzer
	Logs       *LogBuffer
	Output     *Output
	Prompt     string
}

// Run reads commands until the user quits, the input ends or ctx is done.
func (this *Console) Run(ctx context.Context) error {
	prompt := this.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("cannot open interactive console: %w", err)
	}
	defer func() { _ = rl.Close() }()

	if o := this.Output; o != nil {
		previous := o.Set(rl.Stdout())
		defer o.Set(previous...)
	}

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			// io.EOF or closed because ctx is done.
			return nil
		}
		if err := this.Execute(ctx, line, rl.Stdout()); errors.Is(err, ErrQuit) {
			return nil
		} else if err != nil {
			_, _ = fmt.Fprintf(rl.Stdout(), "error: %v\n", err)
		}
	}
	return nil
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("start"),
	readline.PcItem("stop"),
	readline.PcItem("status"),
	readline.PcItem("volume"),
	readline.PcItem("logs"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// Execute runs one command line and writes its result to w. It returns
// ErrQuit if the user asked to leave.
func (this *Console) Execute(ctx context.Context, line string, w io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "start":
		if err := this.Controller.Start(ctx); err != nil {
			return err
		}
		log.Debug("Baby monitor started by console.")
		return this.printStatus(w)
	case "stop":
		this.Controller.Stop()
		log.Debug("Baby monitor stopped by console.")
		return this.printStatus(w)
	case "status":
		return this.printStatus(w)
	case "volume":
		return this.printVolume(w)
	case "logs":
		n := defaultLogs
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 0 {
				return fmt.Errorf("illegal number of lines: %q", fields[1])
			}
			n = v
		}
		return this.printLogs(w, n)
	case "help", "?":
		_, err := fmt.Fprint(w, help)
		return err
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q; try help", fields[0])
	}
}

const help = `start       start advertising and streaming
stop        stop everything and disconnect the parent device
status      print the current status
volume      print the current volume
logs [n]    print the last n log lines
quit        leave the baby monitor
`

func (this *Console) printStatus(w io.Writer) error {
	s := this.Controller.Status()
	if _, err := fmt.Fprintf(w, "status:  %s (%v)\naddress: %s\n", s.Text(), s.State, s.AddressText()); err != nil {
		return err
	}
	if s.Port > 0 {
		if _, err := fmt.Fprintf(w, "port:    %d\n", s.Port); err != nil {
			return err
		}
	}
	if s.ServiceName != "" {
		if _, err := fmt.Fprintf(w, "service: %s\n", s.ServiceName); err != nil {
			return err
		}
	}
	return nil
}

func (this *Console) printVolume(w io.Writer) error {
	a := this.Analyzer
	if a == nil {
		return errors.New("volume not available")
	}
	v, max := a.Volume(), a.MaxVolume()
	_, err := fmt.Fprintf(w, "[%s] %.4f (max %.4f)\n", Bar(v, max, volumeBarSize), v, max)
	return err
}

func (this *Console) printLogs(w io.Writer, n int) error {
	if this.Logs == nil {
		return errors.New("logs not available")
	}
	if n == 0 {
		return nil
	}
	for _, line := range this.Logs.Lines(n) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Bar renders v relative to max as a bar of the given width.
func Bar(v, max float64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(v / max * float64(width))
	}
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat(" ", width-filled)
}
