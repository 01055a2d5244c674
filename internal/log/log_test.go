package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "", want: "info"},
		{input: "debug", want: "debug"},
		{input: "WARNING", want: "warn"},
		{input: "trace", want: "trace"},
		{input: "error", want: "error"},
		{input: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSetLogLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		_ = SetLogLevel("info")
		SetOutput(nil)
	})

	require.NoError(t, SetLogLevel("warn"))
	assert.Equal(t, "warn", GetLogLevel())

	buf.Reset()
	LogInfoWithFields("test", "hidden message", nil)
	LogWarnWithFields("test", "visible message", map[string]any{"key": "value"})

	out := buf.String()
	assert.NotContains(t, out, "hidden message")
	assert.Contains(t, out, "visible message")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "key=value")
}

func TestLogTraceOnlyAtTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		_ = SetLogLevel("info")
		SetOutput(nil)
	})

	require.NoError(t, SetLogLevel("debug"))
	buf.Reset()
	LogTrace("not shown %d", 1)
	assert.Empty(t, buf.String())

	require.NoError(t, SetLogLevel("trace"))
	buf.Reset()
	LogTraceWithFields("test", "shown", nil)
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestSetLogLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, SetLogLevel("verbose"))
}
