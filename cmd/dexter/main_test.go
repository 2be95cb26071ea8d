package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferedSink holds log lines until Sync is called.
type bufferedSink struct {
	pending bytes.Buffer
	flushed bytes.Buffer
}

func (s *bufferedSink) Write(p []byte) (int, error) { return s.pending.Write(p) }

func (s *bufferedSink) Sync() error {
	_, err := s.pending.WriteTo(&s.flushed)
	return err
}

func newSinkLogger(sink *bufferedSink) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, sink, zapcore.DebugLevel))
}

func TestShutdown_FlushesErrorBeforeExit(t *testing.T) {
	sink := &bufferedSink{}
	code := shutdown(newSinkLogger(sink), errors.New("listen tcp :8080: address already in use"))

	assert.Equal(t, 1, code)
	assert.Zero(t, sink.pending.Len())
	assert.Contains(t, sink.flushed.String(), `"level":"error"`)
	assert.Contains(t, sink.flushed.String(), "address already in use")
}

func TestShutdown_CleanStop(t *testing.T) {
	sink := &bufferedSink{}
	code := shutdown(newSinkLogger(sink), nil)

	assert.Equal(t, 0, code)
	assert.Zero(t, sink.pending.Len())
	assert.Contains(t, sink.flushed.String(), "dexter stopped")
}
