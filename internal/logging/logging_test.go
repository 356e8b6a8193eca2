package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/config"
)

func TestNew_JSON(t *testing.T) {
	logger, err := New(&config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_Console(t *testing.T) {
	logger, err := New(&config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_NilConfigDefaults(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestSync_IgnoresTTYErrors(t *testing.T) {
	logger, err := New(&config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NoError(t, Sync(logger))
}
