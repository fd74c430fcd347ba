package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(LoadOptions{EnvFiles: []string{}, LookupEnv: env(nil)})
	require.NoError(t, err)
	require.Equal(t, Default(), s)
	require.Equal(t, DefaultPromoURL, s.PromoURL)
	require.Len(t, s.Welcome.Options, 3)
	require.False(t, s.Redis.Enabled)
}

func TestLoad_LayersInOrder(t *testing.T) {
	file := writeFile(t, "chatsurface.yaml", `
endpoint: ws://from-file:9000/ws
handshake_timeout: 3s
transcript: sqlite
welcome:
  text: Hi there
  options: [a, b, c]
log:
  level: debug
`)
	dotenv := writeFile(t, ".env", `
CHATSURFACE_ENDPOINT=wss://from-dotenv/ws
CHATSURFACE_REDIS_ADDR=redis:6379
CHATSURFACE_WRITE_TIMEOUT=250ms
`)

	s, err := Load(LoadOptions{
		File:     file,
		EnvFiles: []string{dotenv},
		LookupEnv: env(map[string]string{
			"CHATSURFACE_REDIS_ADDR": "process:6379",
			"CHATSURFACE_LOG_LEVEL":  "WARN",
		}),
	})
	require.NoError(t, err)
	require.Equal(t, "wss://from-dotenv/ws", s.Endpoint)
	require.Equal(t, 3*time.Second, s.HandshakeTimeout)
	require.Equal(t, 250*time.Millisecond, s.WriteTimeout)
	require.Equal(t, "sqlite", s.Transcript)
	require.Equal(t, "Hi there", s.Welcome.Text)
	require.Equal(t, []string{"a", "b", "c"}, s.Welcome.Options)
	require.Equal(t, "process:6379", s.Redis.Addr)
	require.Equal(t, "warn", s.Log.Level)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	file := writeFile(t, "c.yaml", "promo_url: https://example.com/deals\n")
	s, err := Load(LoadOptions{EnvFiles: []string{}, LookupEnv: env(map[string]string{"CHATSURFACE_CONFIG": file})})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/deals", s.PromoURL)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	file := writeFile(t, "empty.yaml", "")
	s, err := Load(LoadOptions{File: file, EnvFiles: []string{}, LookupEnv: env(nil)})
	require.NoError(t, err)
	require.Equal(t, Default(), s)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown key", file: "endpoit: ws://x\n", wantErr: "endpoit"},
		{name: "http endpoint", env: map[string]string{"CHATSURFACE_ENDPOINT": "http://x/ws"}, wantErr: "Settings.Endpoint failed wsurl"},
		{name: "bad backend", env: map[string]string{"CHATSURFACE_TRANSCRIPT": "postgres"}, wantErr: "Settings.Transcript failed oneof"},
		{name: "two welcome options", file: "welcome:\n  text: hi\n  options: [a, b]\n", wantErr: "Settings.Welcome.Options failed len"},
		{name: "bad duration", env: map[string]string{"CHATSURFACE_WRITE_TIMEOUT": "soon"}, wantErr: "CHATSURFACE_WRITE_TIMEOUT"},
		{name: "bad bool", env: map[string]string{"CHATSURFACE_REDIS_ENABLED": "maybe"}, wantErr: "CHATSURFACE_REDIS_ENABLED"},
		{name: "redis without addr", env: map[string]string{"CHATSURFACE_REDIS_ENABLED": "true", "CHATSURFACE_REDIS_ADDR": ""}, wantErr: "Settings.Redis.Addr failed required_if"},
		{name: "bad log level", env: map[string]string{"CHATSURFACE_LOG_LEVEL": "chatty"}, wantErr: "Settings.Log.Level failed oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := LoadOptions{EnvFiles: []string{}, LookupEnv: env(tt.env)}
			if tt.file != "" {
				opts.File = writeFile(t, "c.yaml", tt.file)
			}
			_, err := Load(opts)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml"), EnvFiles: []string{}, LookupEnv: env(nil)})
	require.ErrorContains(t, err, "read config")
}

func TestYAML_RoundTrips(t *testing.T) {
	s := Default()
	s.HandshakeTimeout = 1500 * time.Millisecond
	s.Redis.Enabled = true

	data, err := YAML(s)
	require.NoError(t, err)
	require.Contains(t, string(data), "handshake_timeout: 1.5s")

	path := writeFile(t, "out.yaml", string(data))
	loaded, err := Load(LoadOptions{File: path, EnvFiles: []string{}, LookupEnv: env(nil)})
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}
