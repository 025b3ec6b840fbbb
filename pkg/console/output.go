package console

import (
	"fmt"
	"io"
	"sync"
)

// Output writes to a replaceable set of writers. It sits between the log
// consumer and the terminal, so the interactive console can take over the
// terminal while it runs.
type Output struct {
	delegates []io.Writer
	mutex     sync.RWMutex
}

func NewOutput(delegates ...io.Writer) *Output {
	return &Output{delegates: delegates}
}

func (this *Output) Write(p []byte) (n int, err error) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	for i, w := range this.delegates {
		var nn int
		if nn, err = w.Write(p); err != nil {
			return n, err
		}
		if i == 0 {
			n = nn
		} else if n != nn {
			return n, fmt.Errorf("the previous writer wrote %d, but the current one wrote %d bytes", n, nn)
		}
	}

	return n, nil
}

// Set replaces all delegates and returns the previous ones.
func (this *Output) Set(next ...io.Writer) (previous []io.Writer) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	previous = this.delegates
	this.delegates = next
	return previous
}
