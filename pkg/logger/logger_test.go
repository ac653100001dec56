package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zap.AtomicLevel
	}{
		{"default is info", "", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"debug", "DEBUG", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"invalid falls back to info", "loud", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(Config{Level: tt.level, OutputPath: filepath.Join(t.TempDir(), "app.log")})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.want.Level()))
			assert.False(t, log.Core().Enabled(tt.want.Level()-1))
		})
	}
}

func TestNew_ConsoleEncoding(t *testing.T) {
	log, err := New(Config{Encoding: "console", OutputPath: filepath.Join(t.TempDir(), "app.log")})
	require.NoError(t, err)
	log.Info("hello")
	assert.NoError(t, log.Sync())
}
