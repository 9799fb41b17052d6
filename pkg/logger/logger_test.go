package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	prod, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, prod.Core().Enabled(zapcore.WarnLevel))

	// unknown levels fall back to info
	dev, err := New("development", "chatty")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, dev.Core().Enabled(zapcore.DebugLevel))
}
