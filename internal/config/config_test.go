package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("SCHEDULE_INTERVAL", "30m"); err != nil {
		t.Fatalf("Failed to set SCHEDULE_INTERVAL: %v", err)
	}
	if err := os.Setenv("ENABLED_SOURCES", "coingecko, csv"); err != nil {
		t.Fatalf("Failed to set ENABLED_SOURCES: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("SCHEDULE_INTERVAL")
		_ = os.Unsetenv("ENABLED_SOURCES")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Schedule.Interval != 30*time.Minute {
		t.Errorf("Schedule.Interval = %v, want %v", cfg.Schedule.Interval, 30*time.Minute)
	}

	if len(cfg.Sources.Enabled) != 2 || cfg.Sources.Enabled[0] != "coingecko" || cfg.Sources.Enabled[1] != "csv" {
		t.Errorf("Sources.Enabled = %v, want [coingecko csv]", cfg.Sources.Enabled)
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db",
		Port:     "5432",
		Database: "price_etl",
		User:     "etl",
		Password: "secret",
	}

	want := "postgres://etl:secret@db:5432/price_etl?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Errorf("URL() = %v, want %v", got, want)
	}
}

func TestClickHouseEnabled(t *testing.T) {
	cfg := &ClickHouseConfig{}
	if cfg.Enabled() {
		t.Error("Enabled() = true for empty host")
	}

	cfg.Host = "clickhouse"
	if !cfg.Enabled() {
		t.Error("Enabled() = false with host set")
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_KEY_MISSING",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set %s: %v", tt.key, err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	if err := os.Setenv("TEST_DURATION", "45s"); err != nil {
		t.Fatalf("Failed to set TEST_DURATION: %v", err)
	}
	if err := os.Setenv("TEST_DURATION_BAD", "not-a-duration"); err != nil {
		t.Fatalf("Failed to set TEST_DURATION_BAD: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_DURATION")
		_ = os.Unsetenv("TEST_DURATION_BAD")
	}()

	if got := getEnvAsDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 45s", got)
	}

	if got := getEnvAsDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvAsDuration() with bad value = %v, want default 1m", got)
	}
}
