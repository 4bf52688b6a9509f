package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/linerank/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ranking.Capacity != 5 {
		t.Errorf("Ranking.Capacity = %d, want 5", cfg.Ranking.Capacity)
	}
	if cfg.Input.MaxLineBytes != 1000 {
		t.Errorf("Input.MaxLineBytes = %d, want 1000", cfg.Input.MaxLineBytes)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Error("external services should be disabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linerank.yaml")
	data := []byte(`
ranking:
  capacity: 3
input:
  maxLineBytes: 0
redis:
  enabled: true
  cacheTTL: 5m
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LR_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LR_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ranking.Capacity != 3 || cfg.Ranking.MaxCapacity != 100 {
		t.Errorf("Ranking = %+v", cfg.Ranking)
	}
	if cfg.Input.MaxLineBytes != 0 {
		t.Errorf("Input.MaxLineBytes = %d, want 0", cfg.Input.MaxLineBytes)
	}
	if !cfg.Redis.Enabled || cfg.Redis.CacheTTL != 5*time.Minute || cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsZeroCapacity(t *testing.T) {
	t.Setenv("LR_RANKING_CAPACITY", "0")
	_, err := Load("")
	if !errors.Is(err, apperrors.ErrInvalidConfiguration) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestReadDefersValidation(t *testing.T) {
	t.Setenv("LR_RANKING_CAPACITY", "0")
	cfg, err := Read("")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Ranking.Capacity != 0 {
		t.Fatalf("Ranking.Capacity = %d, want env override 0", cfg.Ranking.Capacity)
	}
	if err := cfg.Validate(); !errors.Is(err, apperrors.ErrInvalidConfiguration) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfiguration", err)
	}
	cfg.Ranking.Capacity = 3
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after override error = %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
