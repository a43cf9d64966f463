package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_PASSWORD", "letmein")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.GeneratorConcurrency)
	assert.Equal(t, 60, cfg.Rules.QuestionTimerSec)
	assert.Equal(t, 180, cfg.Rules.BreakTimerSec)
	assert.Equal(t, 60, cfg.Rules.PerformTimerSec)
	assert.Equal(t, 2500, cfg.Rules.TurnDelayMs)
}

func TestLoad_Overrides(t *testing.T) {
	baseEnv(t)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://quiz@localhost/quiz")
	t.Setenv("BREAK_SECONDS", "5")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("PUBLIC_URL", "https://quiz.example.org/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 5, cfg.Rules.BreakTimerSec)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "https://quiz.example.org", cfg.PublicURL)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad number", env: map[string]string{"QUESTION_SECONDS": "soon"}, want: "QUESTION_SECONDS"},
		{name: "bad duration", env: map[string]string{"TOKEN_TTL": "forever"}, want: "TOKEN_TTL"},
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "mongo"}, want: "STORE_DRIVER"},
		{name: "postgres without dsn", env: map[string]string{"STORE_DRIVER": "postgres"}, want: "DATABASE_URL"},
		{name: "no admin credential", env: map[string]string{"ADMIN_PASSWORD": ""}, want: "ADMIN_PASSWORD"},
		{name: "zero timer", env: map[string]string{"PERFORM_SECONDS": "0"}, want: "timer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	baseEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AI_MODEL=test-model\nGENERATOR_CONCURRENCY=2\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("AI_MODEL")
		os.Unsetenv("GENERATOR_CONCURRENCY")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cfg.AIModel)
	assert.Equal(t, 2, cfg.GeneratorConcurrency)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
