// Package config loads the Shrike configuration from built-in defaults,
// an optional YAML file, and SHRIKE_* environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"

	"github.com/opensource-finance/shrike/internal/domain"
)

// DefaultYAML is the built-in Community tier configuration. A config
// file and environment variables override it key by key.
var DefaultYAML = []byte(`
tier: "community"

server:
  host: "0.0.0.0"
  port: 8080
  read_timeout: 30
  write_timeout: 30

batch:
  size_threshold_bytes: 10485760
  chunk_size_bytes: 5242880
  sample_size: 2000
  max_samples_per_chunk: 200
  max_rows: 10000
  partition_size: 5000
  max_upload_bytes: 53687091200
  alert_fraud_percentage: 20

repository:
  driver: "sqlite"
  sqlite_path: "./shrike.db"

cache:
  type: "memory"
  local_max_size: 10000
  local_ttl: 300

event_bus:
  type: "channel"
  channel_buffer_size: 1000

logging:
  level: "info"
  format: "json"

tracing:
  enabled: false
  service_name: "shrike"
`)

// envPrefix scopes environment overrides. Nesting uses a double
// underscore so single underscores inside key names survive:
// SHRIKE_SERVER__PORT=9090 sets server.port.
const envPrefix = "SHRIKE_"

// Load builds the configuration. path may be empty or point to a
// missing file; both fall back to defaults plus environment.
func Load(path string) (*domain.Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(DefaultYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg := domain.DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Pro tier fills in its backend defaults for anything the file and
	// environment left unset.
	if cfg.Tier == domain.TierPro {
		applyProDefaults(cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func applyProDefaults(cfg *domain.Config) {
	if cfg.Repository.Driver == "" || cfg.Repository.Driver == "sqlite" {
		pro := domain.ProConfig()
		cfg.Repository = pro.Repository
	}
	if cfg.Cache.Type == "" || cfg.Cache.Type == "memory" {
		cfg.Cache = domain.ProConfig().Cache
	}
	if cfg.EventBus.Type == "" || cfg.EventBus.Type == "channel" {
		cfg.EventBus = domain.ProConfig().EventBus
	}
}

// Validate checks the configuration for values the server cannot start
// with. All problems are reported at once.
func Validate(cfg *domain.Config) error {
	var problems []string

	if cfg.Tier != domain.TierCommunity && cfg.Tier != domain.TierPro {
		problems = append(problems, fmt.Sprintf("tier: must be %q or %q", domain.TierCommunity, domain.TierPro))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, "server.port: must be between 1 and 65535")
	}

	switch cfg.Repository.Driver {
	case "sqlite":
		if cfg.Repository.SQLitePath == "" {
			problems = append(problems, "repository.sqlite_path: cannot be empty")
		}
	case "postgres":
		if cfg.Repository.PostgresHost == "" {
			problems = append(problems, "repository.postgres_host: cannot be empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("repository.driver: unsupported driver %q", cfg.Repository.Driver))
	}

	switch cfg.Cache.Type {
	case "memory":
		if cfg.Cache.LocalMaxSize <= 0 {
			problems = append(problems, "cache.local_max_size: must be positive")
		}
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			problems = append(problems, "cache.redis_addr: cannot be empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("cache.type: unsupported type %q", cfg.Cache.Type))
	}

	switch cfg.EventBus.Type {
	case "channel":
		if cfg.EventBus.ChannelBufferSize <= 0 {
			problems = append(problems, "event_bus.channel_buffer_size: must be positive")
		}
	case "nats":
		if cfg.EventBus.NATSUrl == "" {
			problems = append(problems, "event_bus.nats_url: cannot be empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("event_bus.type: unsupported type %q", cfg.EventBus.Type))
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if cfg.Batch.SizeThresholdBytes <= 0 {
		problems = append(problems, "batch.size_threshold_bytes: must be positive")
	}
	if cfg.Batch.SampleSize <= 0 {
		problems = append(problems, "batch.sample_size: must be positive")
	}
	if cfg.Batch.MaxUploadBytes <= 0 {
		problems = append(problems, "batch.max_upload_bytes: must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
