package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, ModeStdio, cfg.Transport.Mode)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phasefold.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
transport:
  mode: http
auth:
  tokens:
    ci: abc
db:
  path: /var/lib/phasefold/ledger.db
engine:
  command: fermipy-engine
  args: [--quiet]
`), 0o644))

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvServerPort, "9100")
	t.Setenv(EnvAllowedOrigins, "https://a.example, https://b.example,")
	t.Setenv(EnvAuthToken, "xyz")
	t.Setenv(EnvEngineDryRun, "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, ModeHTTP, cfg.Transport.Mode)
	require.Equal(t, map[string]string{"ci": "abc", "default": "xyz"}, cfg.Auth.Tokens)
	require.Equal(t, "/var/lib/phasefold/ledger.db", cfg.DB.Path)
	require.Equal(t, "fermipy-engine", cfg.Engine.Command)
	require.Equal(t, []string{"--quiet"}, cfg.Engine.Args)
	require.True(t, cfg.Engine.DryRun)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(EnvServerPort, "eighty")
	_, err := Load()
	require.Error(t, err)

	t.Setenv(EnvServerPort, "")
	t.Setenv(EnvTransportMode, "carrier-pigeon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv(EnvTransportMode, "")
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	require.Error(t, err)
}
