package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabdi59/tournapro/models"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "STORE_DRIVER", "JWT_SECRET_KEY", "SERVER_PORT", "LOCK_TIMEOUT",
		"REDIS_URL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
		"POINTS_WIN", "POINTS_DRAW", "POINTS_LOSS", "CONFIG_FILE",
	} {
		t.Setenv(key, env[key])
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":   "postgres://localhost/tournapro",
		"JWT_SECRET_KEY": "secret",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, models.DefaultScoringRules(), cfg.Defaults.Scoring)
	assert.True(t, cfg.Defaults.Format.GrandFinalReset)
	assert.False(t, cfg.LogoStorageEnabled())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"JWT_SECRET_KEY": "s"}},
		{name: "missing jwt secret", env: map[string]string{"STORE_DRIVER": "memory"}},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mongo", "JWT_SECRET_KEY": "s"}},
		{name: "bad port", env: map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET_KEY": "s", "SERVER_PORT": "70000"}},
		{name: "bad lock timeout", env: map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET_KEY": "s", "LOCK_TIMEOUT": "soon"}},
		{name: "bad points", env: map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET_KEY": "s", "POINTS_WIN": "three"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PointsAndOrigins(t *testing.T) {
	setEnv(t, map[string]string{
		"STORE_DRIVER":         "memory",
		"JWT_SECRET_KEY":       "s",
		"POINTS_WIN":           "2",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example ,",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, models.ScoringRules{Win: 2, Draw: 1, Loss: 0}, cfg.Defaults.Scoring)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_YAMLDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournapro.yaml")
	body := `
defaults:
  scoring:
    win: 2
  format:
    legs: 2
    group_count: 4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	setEnv(t, map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET_KEY": "s", "CONFIG_FILE": path})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Defaults.Scoring.Win)
	assert.Equal(t, 1, cfg.Defaults.Scoring.Draw, "keys missing from the file keep their defaults")
	assert.Equal(t, 2, cfg.Defaults.Format.Legs)
	assert.Equal(t, 4, cfg.Defaults.Format.GroupCount)
	assert.Equal(t, 2, cfg.Defaults.Format.QualifiersPerGroup)
}

func TestOverlayDefaults_RejectsBadLegs(t *testing.T) {
	cfg := &Config{Defaults: Defaults{Format: models.DefaultFormatSettings()}}
	assert.Error(t, cfg.overlayDefaults([]byte("defaults:\n  format:\n    legs: 3\n")))
}
