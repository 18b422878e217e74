package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.Format = "json"
	cfg.LogPath = dir

	log, err := New(cfg, "pipeline")
	require.NoError(t, err)
	log.WithField("stage", "clean").Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "pipeline.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"stage":"clean"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	log, err := New(cfg, "x")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestComponent(t *testing.T) {
	log, hook := test.NewNullLogger()
	Component(log, "writer").Warn("careful")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "writer", hook.LastEntry().Data["component"])
}
