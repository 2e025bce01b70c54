package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env     string
		debug   bool
		infoLvl bool
	}{
		{env: "local", debug: true, infoLvl: true},
		{env: "development", debug: false, infoLvl: true},
		{env: "production", debug: false, infoLvl: true},
		{env: "", debug: false, infoLvl: true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			l, err := New(tt.env, FileOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.debug, l.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.infoLvl, l.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.log")

	l, err := New("production", FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	l.Info("ambulance dispatched")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "ambulance dispatched")
}
