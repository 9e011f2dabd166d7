package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 int
	DBPath               string
	BusyTimeout          time.Duration
	CancelCutoffDays     int
	ConflictThreshold    int
	Location             *time.Location
	AccrualEnabled       bool
	AccrualCheckInterval time.Duration
	CORSOrigins          []string
	LogLevel             string
}

// Load reads an optional .env file from the working directory and then the
// process environment. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	tz := getEnv("HR_TIMEZONE", "Asia/Manila")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("HR_TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		Port:                 getEnvAsInt("HR_PORT", 8080),
		DBPath:               getEnv("HR_DB_PATH", "./data/hr.db"),
		BusyTimeout:          time.Duration(getEnvAsInt("HR_BUSY_TIMEOUT_MS", 5000)) * time.Millisecond,
		CancelCutoffDays:     getEnvAsInt("HR_CANCEL_CUTOFF_DAYS", 1),
		ConflictThreshold:    getEnvAsInt("HR_CONFLICT_THRESHOLD", 50),
		Location:             loc,
		AccrualEnabled:       getEnvAsBool("HR_ACCRUAL_ENABLED", true),
		AccrualCheckInterval: getEnvAsDuration("HR_ACCRUAL_CHECK_INTERVAL", time.Hour),
		CORSOrigins:          getEnvAsList("HR_CORS_ORIGINS", []string{"*"}),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("HR_PORT %d out of range", c.Port)
	}
	if c.CancelCutoffDays < 0 {
		return fmt.Errorf("HR_CANCEL_CUTOFF_DAYS must not be negative")
	}
	if c.ConflictThreshold <= 0 || c.ConflictThreshold > 100 {
		return fmt.Errorf("HR_CONFLICT_THRESHOLD must be between 1 and 100")
	}
	if c.AccrualCheckInterval <= 0 {
		return fmt.Errorf("HR_ACCRUAL_CHECK_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	if val, err := strconv.Atoi(getEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	if val, err := strconv.ParseBool(getEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if val, err := time.ParseDuration(getEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsList(name string, defaultVal []string) []string {
	raw := getEnv(name, "")
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
