package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: https://turnos.example.com/
  timeout_seconds: 3
desk:
  floor: 2
  actor: piso2
poller:
  interval_seconds: 30
notifier:
  sound_enabled: false
areas:
  - key: MESA
    nombre: Mesa de Entradas
    piso: 0
area_variants:
  ENTRADAS: MESA
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://turnos.example.com", cfg.Backend.URL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2, cfg.Desk.Floor)
	assert.Equal(t, "ESPERA", cfg.Desk.Estado)
	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.False(t, cfg.Notifier.SoundOn())
	require.Len(t, cfg.Areas, 1)
	assert.Equal(t, "MESA", cfg.Variants["ENTRADAS"])
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "backend:\n  url: http://localhost:8000\n"))
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 4*time.Second, cfg.Notifier.ToastDuration)
	assert.Equal(t, 5*time.Second, cfg.Notifier.SystemTTL)
	assert.True(t, cfg.Notifier.SoundOn())
	assert.Equal(t, "default", cfg.Notifier.Permission)
	assert.Equal(t, "file:turnero.db", cfg.Database.DSN)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "web", cfg.Push.Platform)
	assert.Equal(t, 3600, cfg.Push.TTL)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, -1, cfg.Desk.Floor)
	assert.Equal(t, 15*time.Second, cfg.Poller.Interval)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map]"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Desk.Floor)
	assert.Equal(t, 2, cfg.WorkerPool.Size)
}
