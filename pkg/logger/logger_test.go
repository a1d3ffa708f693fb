package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerValidation(t *testing.T) {
	_, err := newLogger(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = newLogger(Config{Level: "info", Encoding: "xml"})
	assert.Error(t, err)

	l, err := newLogger(Config{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestDefaultLevelIsWarn(t *testing.T) {
	l, err := newLogger(Config{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWithContextAddsRunFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ctx := context.WithValue(context.Background(), RunIDKey, "run-1")
	ctx = context.WithValue(ctx, SourceKey, "csv")
	ctx = context.WithValue(ctx, DestinationKey, "parquet")

	WithContext(ctx).Info("converted")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "csv", fields["source"])
	assert.Equal(t, "parquet", fields["destination"])
}

func TestInitReplacesLogger(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	require.NoError(t, Init(Config{Level: "error"}))
	assert.False(t, Get().Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Init(Config{Level: "debug"}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
}
