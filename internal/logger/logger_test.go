package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLoggerLevelAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, &buf)

	l.Info("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.WarnWithPrefix("seal", "Verifying block %d", 42)
	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "Verifying block 42")
	assert.Contains(t, out, "module=seal")
}
