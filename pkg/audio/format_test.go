package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_MinBufferSize(t *testing.T) {
	f := DefaultFormat()

	assert.Equal(t, 2, f.BytesPerFrame())
	assert.Equal(t, 2048, f.MinBufferSize(1024))
	assert.Equal(t, "11025Hz/1ch/16bit", f.String())
}

func TestFormat_Validate(t *testing.T) {
	assert.NoError(t, DefaultFormat().Validate())
	assert.Error(t, Format{SampleRate: 0, Channels: 1, BitDepth: 16}.Validate())
	assert.Error(t, Format{SampleRate: 11025, Channels: 0, BitDepth: 16}.Validate())
	assert.Error(t, Format{SampleRate: 11025, Channels: 1, BitDepth: 8}.Validate())
}

func TestSamplesAreLittleEndian(t *testing.T) {
	encoded := encodeSamples(nil, []int16{1, -2, 0x1234})
	assert.Equal(t, []byte{0x01, 0x00, 0xFE, 0xFF, 0x34, 0x12}, encoded)

	decoded := make([]int16, 4)
	n := decodeSamples(decoded, append(encoded, 0x99))
	require.Equal(t, 3, n)
	assert.Equal(t, []int16{1, -2, 0x1234, 0}, decoded)
}

func TestConfiguration_Format(t *testing.T) {
	assert.Equal(t, DefaultFormat(), NewConfiguration().Format())
	assert.Equal(t, DefaultFormat(), Configuration{}.Format())
	assert.Equal(t, 22050, Configuration{SampleRate: 22050}.Format().SampleRate)
	assert.Equal(t, 1, Configuration{SampleRate: 22050}.Format().Channels)
}
