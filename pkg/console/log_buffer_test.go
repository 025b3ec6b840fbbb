package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_Write(t *testing.T) {
	instance := NewLogBuffer(3, 5)

	write := func(v string) {
		t.Helper()
		n, err := instance.Write([]byte(v))
		require.NoError(t, err)
		require.Equal(t, len(v), n)
	}

	write("abc")
	assert.Empty(t, instance.Lines(0), "incomplete lines are not reported")

	write("de\nfg")
	assert.Equal(t, []string{"abcde"}, instance.Lines(0))

	write("hijklmn\n1\n2\n")
	assert.Equal(t, []string{"fghij", "1", "2"}, instance.Lines(0), "truncated and rotated")
	assert.Equal(t, []string{"1", "2"}, instance.Lines(2))

	write("3\n")
	assert.Equal(t, []string{"1", "2", "3"}, instance.Lines(10))
}

func TestLogBuffer_Defaults(t *testing.T) {
	instance := NewLogBuffer(0, 0)
	_, err := instance.Write([]byte(strings.Repeat("x", DefaultLogBufferLineLength+10) + "\n"))
	require.NoError(t, err)

	lines := instance.Lines(0)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], DefaultLogBufferLineLength)
}

func TestOutput_Set(t *testing.T) {
	var a, b bytes.Buffer
	instance := NewOutput(&a)

	_, err := instance.Write([]byte("1"))
	require.NoError(t, err)

	previous := instance.Set(&a, &b)
	assert.Len(t, previous, 1)

	n, err := instance.Write([]byte("23"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "123", a.String())
	assert.Equal(t, "23", b.String())
}
