package volume

import (
	"sync"
)

const (
	// MaxHistory is the number of volume samples kept for rendering.
	MaxHistory = 10_000

	// InitialMaxVolume is the floor of the running maximum so silence does
	// not get rendered at full scale.
	InitialMaxVolume = 0.25
)

// Analyzer computes the volume of each observed audio chunk and keeps a
// bounded history of it. It is safe to observe from the streaming worker
// while rendering from somewhere else.
type Analyzer struct {
	volume    float64
	maxVolume float64
	history   []float64
	mutex     sync.RWMutex
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		maxVolume: InitialMaxVolume,
	}
}

// Observe consumes one chunk of captured audio. Every byte is taken as one
// signed 8-bit sample.
func (this *Analyzer) Observe(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	v := Of(chunk)

	this.mutex.Lock()
	this.volume = v
	if v > this.maxVolume {
		this.maxVolume = v
	}
	this.history = append(this.history, v)
	if overflow := len(this.history) - MaxHistory; overflow > 0 {
		this.history = append(this.history[:0], this.history[overflow:]...)
	}
	this.mutex.Unlock()
}

// Write makes the Analyzer usable as an io.Writer sink. It never fails.
func (this *Analyzer) Write(p []byte) (int, error) {
	this.Observe(p)
	return len(p), nil
}

func (this *Analyzer) Volume() float64 {
	this.mutex.RLock()
	defer this.mutex.RUnlock()
	return this.volume
}

func (this *Analyzer) MaxVolume() float64 {
	this.mutex.RLock()
	defer this.mutex.RUnlock()
	return this.maxVolume
}

// Snapshot returns a consistent view for rendering.
func (this *Analyzer) Snapshot(maxHistory int) Snapshot {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	from := 0
	if maxHistory >= 0 && len(this.history) > maxHistory {
		from = len(this.history) - maxHistory
	}
	result := Snapshot{
		Volume:    this.volume,
		MaxVolume: this.maxVolume,
		History:   make([]float64, len(this.history)-from),
	}
	copy(result.History, this.history[from:])
	if from > 0 {
		result.Preceding = this.history[from-1]
		result.HasPreceding = true
	}
	return result
}

// Of returns the mean of the squared samples normalized by 128.
func Of(chunk []byte) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, b := range chunk {
		rel := float64(int8(b)) / 128
		sum += rel * rel
	}
	return sum / float64(len(chunk))
}
