package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONToNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Settings{Level: "debug"}, &buf)
	require.NoError(t, err)
	defer func() { require.NoError(t, closer.Close()) }()

	logger.Debug().Str("component", "session").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "debug", line["level"])
	require.Equal(t, "session", line["component"])
	require.Equal(t, "hello", line["message"])
	require.Contains(t, line, "time")
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Settings{Level: "WARN"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("quiet")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("loud")
	require.Contains(t, buf.String(), "loud")
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, _, err := New(Settings{Level: "chatty"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "chatty")
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsurface.log")
	var console bytes.Buffer
	logger, closer, err := New(Settings{Level: "info", File: path, JSON: true, MaxSizeMB: 1}, &console)
	require.NoError(t, err)

	logger.Info().Msg("to file")
	require.NoError(t, closer.Close())

	require.Zero(t, console.Len())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"to file"`)
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.Equal(t, "info", s.Level)
	require.Empty(t, s.File)
}
