package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opensource-finance/shrike/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if cfg.Tier != domain.TierCommunity {
		t.Errorf("expected community tier, got %s", cfg.Tier)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Repository.Driver)
	}
	if cfg.Batch.SampleSize != 2000 {
		t.Errorf("expected sample size 2000, got %d", cfg.Batch.SampleSize)
	}
	if cfg.Batch.SizeThresholdBytes != 10*1024*1024 {
		t.Errorf("expected 10MB size threshold, got %d", cfg.Batch.SizeThresholdBytes)
	}
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
server:
  port: 9090

batch:
  sample_size: 500

logging:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Batch.SampleSize != 500 {
		t.Errorf("expected sample size 500, got %d", cfg.Batch.SampleSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	// Untouched keys keep defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.Server.Host)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SHRIKE_SERVER__PORT", "7070")
	t.Setenv("SHRIKE_LOGGING__LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070 from environment, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn level from environment, got %s", cfg.Logging.Level)
	}
}

func TestLoadProTierDefaults(t *testing.T) {
	t.Setenv("SHRIKE_TIER", "pro")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Fatalf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("expected postgres driver for pro tier, got %s", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "redis" {
		t.Errorf("expected redis cache for pro tier, got %s", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "nats" {
		t.Errorf("expected nats bus for pro tier, got %s", cfg.EventBus.Type)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(cfg *domain.Config) {},
		},
		{
			name:    "bad tier",
			mutate:  func(cfg *domain.Config) { cfg.Tier = "enterprise" },
			wantErr: "tier",
		},
		{
			name:    "bad port",
			mutate:  func(cfg *domain.Config) { cfg.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown driver",
			mutate:  func(cfg *domain.Config) { cfg.Repository.Driver = "oracle" },
			wantErr: "repository.driver",
		},
		{
			name: "postgres without host",
			mutate: func(cfg *domain.Config) {
				cfg.Repository = domain.RepositoryConfig{Driver: "postgres"}
			},
			wantErr: "postgres_host",
		},
		{
			name: "redis without address",
			mutate: func(cfg *domain.Config) {
				cfg.Cache = domain.CacheConfig{Type: "redis"}
			},
			wantErr: "redis_addr",
		},
		{
			name:    "unknown log level",
			mutate:  func(cfg *domain.Config) { cfg.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "zero sample size",
			mutate:  func(cfg *domain.Config) { cfg.Batch.SampleSize = 0 },
			wantErr: "sample_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Server.Port = -1
	cfg.Logging.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "server.port") || !strings.Contains(msg, "logging.level") {
		t.Errorf("expected both problems reported, got: %v", err)
	}
}
