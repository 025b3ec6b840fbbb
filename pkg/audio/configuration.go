package audio

import (
	"github.com/blaubaer/baby-monitor/pkg/common"
)

func NewConfiguration() Configuration {
	return Configuration{
		SampleRate:      DefaultSampleRate,
		FramesPerBuffer: DefaultFramesPerBuffer,
	}
}

type Configuration struct {
	SampleRate      int `yaml:"sampleRate,omitempty"`
	FramesPerBuffer int `yaml:"framesPerBuffer,omitempty"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("audio.sampleRate", "Sample rate of the captured stream in Hz.").
		Envar("BM_AUDIO_SAMPLE_RATE").
		IntVar(&this.SampleRate)
	using.Flag("audio.framesPerBuffer", "Number of frames read from the microphone at once.").
		Envar("BM_AUDIO_FRAMES_PER_BUFFER").
		IntVar(&this.FramesPerBuffer)
}

// Format returns the wire format: always mono and 16 bit; only the sample
// rate can be configured.
func (this Configuration) Format() Format {
	result := DefaultFormat()
	if v := this.SampleRate; v > 0 {
		result.SampleRate = v
	}
	return result
}
