package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camouflage/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesLevelFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&config.Config{LogDirectory: dir})
	assert.Equal(t, dir, l.Directory())

	l.Info("frame %d accepted", 7)
	l.Warning("segmentation unavailable")
	l.Error("shape mismatch")

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	require.NoError(t, err)
	assert.Contains(t, string(info), "INFO    ")
	assert.Contains(t, string(info), "frame 7 accepted")
	assert.Contains(t, string(info), "logger_test.go", "call site is recorded")

	warning, err := os.ReadFile(filepath.Join(dir, WarningFile))
	require.NoError(t, err)
	assert.Contains(t, string(warning), "segmentation unavailable")
	assert.NotContains(t, string(warning), "frame 7")
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&config.Config{LogDirectory: dir})
	l.Error("first")
	l.Error("second")

	require.NoError(t, l.CleanLogs(ErrorFile))
	data, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(data)))

	assert.Error(t, l.CleanLogs("missing.log"))
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("dropped")
	assert.Empty(t, l.Directory())
	assert.NoError(t, l.CleanLogs(InfoFile))
}
