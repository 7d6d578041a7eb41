package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"learnedkv/pkg/config"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	dev, err := New(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestInstallReplacesGlobal(t *testing.T) {
	restore, err := Install(config.LogConfig{Level: "error"})
	require.NoError(t, err)
	assert.False(t, zap.L().Core().Enabled(zapcore.WarnLevel))
	restore()
	assert.False(t, zap.L().Core().Enabled(zapcore.ErrorLevel), "global logger is a no-op again")
}
