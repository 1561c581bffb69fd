package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputSplitterRoutesByLevel(t *testing.T) {
	splitter := &OutputSplitter{}

	tests := []struct {
		name string
		line []byte
	}{
		{"error", []byte(`time="2026-01-01T00:00:00Z" level=error msg="boom"`)},
		{"info", []byte(`time="2026-01-01T00:00:00Z" level=info msg="ok"`)},
		{"errorSubstringInMessageOnly", []byte(`level=info msg="error occurred but not error level"`)},
		{"empty", []byte("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := splitter.Write(tt.line)
			assert.NoError(t, err)
			assert.Equal(t, len(tt.line), n)
		})
	}
}

func TestOutputSplitterDetectsErrorLevelPattern(t *testing.T) {
	assert.True(t, bytes.Contains([]byte("prefix level=error suffix"), []byte("level=error")))
	assert.False(t, bytes.Contains([]byte("level=info"), []byte("level=error")))
	assert.False(t, bytes.Contains([]byte("LEVEL=ERROR"), []byte("level=error")))
}

func TestLoggerIsInitialized(t *testing.T) {
	assert.NotNil(t, Logger)
	_, ok := Logger.Out.(*OutputSplitter)
	assert.True(t, ok, "Logger should write through OutputSplitter")
}

func TestContextLoggerMergesFields(t *testing.T) {
	base := NewContextLogger(Logger, map[string]interface{}{"service": "docdb"})
	extended := base.WithField("key", "k1").WithFields(map[string]interface{}{"op": "set"})

	assert.Equal(t, "docdb", extended.fields["service"])
	assert.Equal(t, "k1", extended.fields["key"])
	assert.Equal(t, "set", extended.fields["op"])
	// base is unmodified by the derived logger
	_, hasKey := base.fields["key"]
	assert.False(t, hasKey)
}

func TestNewLoggerAppliesLevel(t *testing.T) {
	l := NewLogger(LoggerConfig{Level: LogLevelDebug})
	assert.Equal(t, LogLevelDebug, LogLevel(l.GetLevel().String()))
}
