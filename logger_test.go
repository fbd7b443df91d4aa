package lotterysim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Info("Fetched %s after %d attempts", "powerball", 2)
	logger.Error("Fetch %s failed: %v", "cash5", "timeout")
	logger.Debug("DrawMain called with max=%d", 69)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "Fetched powerball after 2 attempts", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "Fetch cash5 failed: timeout", entries[1].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}

func TestLoggers_NilSafe(t *testing.T) {
	var zero *DefaultLogger
	assert.NotPanics(t, func() {
		zero.Info("global logger fallback")
		NewZapLogger(nil).Error("nop")
		NewSilentLogger().Error("silent")
	})

	assert.IsType(t, &SilentLogger{}, loggerOrSilent(nil))
	l := NewSilentLogger()
	assert.Same(t, l, loggerOrSilent(l))
}
