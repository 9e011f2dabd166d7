package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1, cfg.CancelCutoffDays)
	assert.Equal(t, 50, cfg.ConflictThreshold)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
	assert.Equal(t, "Asia/Manila", cfg.Location.String())
	assert.True(t, cfg.AccrualEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HR_PORT", "9090")
	t.Setenv("HR_CANCEL_CUTOFF_DAYS", "3")
	t.Setenv("HR_CORS_ORIGINS", "https://hr.example.gov.ph, http://localhost:5173")
	t.Setenv("HR_ACCRUAL_CHECK_INTERVAL", "15m")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.CancelCutoffDays)
	assert.Equal(t, 15*time.Minute, cfg.AccrualCheckInterval)
	assert.Equal(t, []string{"https://hr.example.gov.ph", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	// GIVEN: a .env file and no matching environment variable
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HR_CONFLICT_THRESHOLD=75\n"), 0o600))
	t.Setenv("HR_CONFLICT_THRESHOLD", "")
	os.Unsetenv("HR_CONFLICT_THRESHOLD")

	// WHEN
	cfg, err := config.Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.ConflictThreshold)
}

func TestLoad_RejectsBadTimezone(t *testing.T) {
	t.Setenv("HR_TIMEZONE", "Mars/Olympus_Mons")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_RejectsThresholdOutOfRange(t *testing.T) {
	t.Setenv("HR_CONFLICT_THRESHOLD", "150")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
