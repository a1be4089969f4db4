package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/geseq/rtkernel/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewFileLogger(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "warn"
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "spawnd.log")

	logger, w, err := New(cfg)
	require.NoError(t, err)
	require.IsType(t, &lumberjack.Logger{}, w)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("dropped")
	logger.Warn().Str("pool", "workers").Msg("kept")
	require.NoError(t, w.(io.Closer).Close())

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"kept"`)
	assert.Contains(t, string(data), `"pool":"workers"`)
	assert.NotContains(t, string(data), "dropped")
}

func TestNewStdoutLogger(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "bogus"

	logger, w, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, zerolog.ConsoleWriter{}, w)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	cfg.Format = "json"
	_, w, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
}
