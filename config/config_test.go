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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	dir := writeConfig(t, `
jwt:
  access_secret: "a-secret"
  refresh_secret: "r-secret"
server:
  port: "8080"
`)

	require.NoError(t, LoadConfig(dir))

	assert.Equal(t, "8080", AppConfig.Server.Port)
	assert.Equal(t, 15*time.Minute, AppConfig.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, AppConfig.JWT.RefreshTTL)
	assert.Equal(t, time.Hour, AppConfig.Auth.ResetTokenTTL)
	assert.Equal(t, time.Second, AppConfig.Auth.ForgotPasswordMinDuration)
	assert.Equal(t, "memory", AppConfig.Ledger.Driver)
	assert.Equal(t, "none", AppConfig.Mail.Driver)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JWT_ACCESS_SECRET", "env-access")
	t.Setenv("JWT_REFRESH_SECRET", "env-refresh")
	t.Setenv("LEDGER_DRIVER", "redis")

	require.NoError(t, LoadConfig(dir))

	assert.Equal(t, "env-access", AppConfig.JWT.AccessSecret)
	assert.Equal(t, "env-refresh", AppConfig.JWT.RefreshSecret)
	assert.Equal(t, "redis", AppConfig.Ledger.Driver)
}

func TestLoadConfig_RejectsSharedSecret(t *testing.T) {
	dir := writeConfig(t, `
jwt:
  access_secret: "same"
  refresh_secret: "same"
`)

	err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsUnknownDrivers(t *testing.T) {
	dir := writeConfig(t, `
jwt:
  access_secret: "a"
  refresh_secret: "b"
mail:
  driver: "pigeon"
`)

	err := LoadConfig(dir)
	assert.ErrorContains(t, err, "mail driver")
}
