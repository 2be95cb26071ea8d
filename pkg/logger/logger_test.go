package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerTo_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLoggerTo("info", &buf)
	require.NoError(t, err)

	l.Info("order accepted", zap.String("side", "buy"))
	require.NoError(t, l.Sync())

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "order accepted", line["msg"])
	assert.Equal(t, "buy", line["side"])
}

func TestNewLoggerTo_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLoggerTo("warn", &buf)
	require.NoError(t, err)

	l.Info("dropped")
	assert.Zero(t, buf.Len())
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	_, err := NewLogger("verbose")
	assert.Error(t, err)
}
