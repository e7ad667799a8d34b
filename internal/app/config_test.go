package app

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
)

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "http://127.0.0.1:3000", cfg.BackendURL)
	require.Equal(t, 10*time.Second, cfg.BackendTimeout)
	require.Equal(t, 30*time.Minute, cfg.ComponentIdleTTL)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.False(t, cfg.IsProduction())

	policy, err := cfg.StalePolicy()
	require.NoError(t, err)
	require.Equal(t, lifecycle.LatestIssued, policy)
	require.Equal(t, "127.0.0.1:6379", cfg.Redis().Addr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("BACKEND_URL", "https://api.example.test")
	t.Setenv("FETCH_STALE_POLICY", "latest-arrival")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "https://api.example.test", cfg.BackendURL)
	require.Equal(t, 3, cfg.Redis().DB)
	require.Equal(t, lifecycle.LatestArrival, cfg.ComponentOptions(nil).Policy)
}

func TestLoadConfig_Rejects(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("CSRF_SECRET", "")
		_, err := LoadConfig()
		require.Error(t, err)
	})

	t.Run("unknown policy", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FETCH_STALE_POLICY", "fifo")
		_, err := LoadConfig()
		require.ErrorIs(t, err, lifecycle.ErrUnknownPolicy)
	})

	t.Run("blank backend", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("BACKEND_URL", "")
		_, err := LoadConfig()
		require.Error(t, err)
	})
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"}).Info("ready")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "ready", record["msg"])
	require.Equal(t, "sustainability-hub", record["service"])

	buf.Reset()
	newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"}).Debug("hidden")
	require.Empty(t, buf.String())

	buf.Reset()
	newLogger(&buf, &Config{AppEnv: "development"}).Debug("shown")
	require.Contains(t, buf.String(), "msg=shown")
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
