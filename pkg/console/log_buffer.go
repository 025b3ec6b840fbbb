package console

import (
	"bytes"
	"sync"
)

const (
	DefaultLogBufferLines      = 2000
	DefaultLogBufferLineLength = 4096
)

// LogBuffer keeps the most recent lines written to it. Lines longer than
// maxLineLength are truncated.
type LogBuffer struct {
	maxLines      int
	maxLineLength int

	lines   [][]byte
	next    int
	full    bool
	current []byte
	mutex   sync.RWMutex
}

func NewLogBuffer(maxLines, maxLineLength int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = DefaultLogBufferLines
	}
	if maxLineLength <= 0 {
		maxLineLength = DefaultLogBufferLineLength
	}
	return &LogBuffer{
		maxLines:      maxLines,
		maxLineLength: maxLineLength,
		lines:         make([][]byte, maxLines),
	}
}

func (this *LogBuffer) Write(p []byte) (int, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			this.appendToCurrent(p)
			break
		}
		this.appendToCurrent(p[:i])
		this.addLine(this.current)
		this.current = this.current[:0]
		p = p[i+1:]
	}
	return n, nil
}

func (this *LogBuffer) appendToCurrent(p []byte) {
	if free := this.maxLineLength - len(this.current); len(p) > free {
		p = p[:free]
	}
	this.current = append(this.current, p...)
}

func (this *LogBuffer) addLine(line []byte) {
	this.lines[this.next] = bytes.Clone(line)
	this.next++
	if this.next >= this.maxLines {
		this.next = 0
		this.full = true
	}
}

func (this *LogBuffer) len() int {
	if this.full {
		return this.maxLines
	}
	return this.next
}

// Lines returns up to max of the most recent complete lines, oldest first.
// max <= 0 returns everything.
func (this *LogBuffer) Lines(max int) []string {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	l := this.len()
	if max <= 0 || max > l {
		max = l
	}
	result := make([]string, 0, max)
	start := this.next - max
	if start < 0 {
		start += this.maxLines
	}
	for i := 0; i < max; i++ {
		result = append(result, string(this.lines[(start+i)%this.maxLines]))
	}
	return result
}
