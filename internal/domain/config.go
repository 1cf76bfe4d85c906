package domain

// Config holds the complete Shrike configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" koanf:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier" koanf:"tier"`

	// Batch analysis settings
	Batch BatchConfig `json:"batch" koanf:"batch"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" koanf:"repository"`
	Cache      CacheConfig      `json:"cache" koanf:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" koanf:"event_bus"`

	// Observability
	Logging LoggingConfig `json:"logging" koanf:"logging"`
	Tracing TracingConfig `json:"tracing" koanf:"tracing"`
}

// BatchConfig tunes the batch analysis pipeline.
type BatchConfig struct {
	// SizeThresholdBytes separates the exact path from the sampled path.
	SizeThresholdBytes int64 `json:"sizeThresholdBytes" koanf:"size_threshold_bytes"`

	// ChunkSizeBytes is the streaming read granularity for large inputs.
	ChunkSizeBytes int `json:"chunkSizeBytes" koanf:"chunk_size_bytes"`

	// SampleSize is the reservoir budget for sampled analysis.
	SampleSize int `json:"sampleSize" koanf:"sample_size"`

	// MaxSamplesPerChunk keeps one early chunk from monopolizing the budget.
	MaxSamplesPerChunk int `json:"maxSamplesPerChunk" koanf:"max_samples_per_chunk"`

	// MaxRows caps the exact path.
	MaxRows int `json:"maxRows" koanf:"max_rows"`

	// PartitionSize is the per-partition record count for oversized
	// in-memory batches.
	PartitionSize int `json:"partitionSize" koanf:"partition_size"`

	// MaxUploadBytes rejects oversized uploads before any processing.
	MaxUploadBytes int64 `json:"maxUploadBytes" koanf:"max_upload_bytes"`

	// AlertFraudPercentage is the async-worker threshold for publishing
	// a fraud alert.
	AlertFraudPercentage float64 `json:"alertFraudPercentage" koanf:"alert_fraud_percentage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" koanf:"host"`
	Port         int    `json:"port" koanf:"port"`
	ReadTimeout  int    `json:"readTimeout" koanf:"read_timeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" koanf:"write_timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" koanf:"level"`   // debug, info, warn, error
	Format string `json:"format" koanf:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled" koanf:"enabled"`
	ServiceName  string `json:"serviceName" koanf:"service_name"`
	ExporterType string `json:"exporterType" koanf:"exporter_type"`
	Endpoint     string `json:"endpoint" koanf:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:  TierCommunity,
		Batch: DefaultBatchConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./shrike.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // seconds
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "shrike",
		},
	}
}

// DefaultBatchConfig returns the batch pipeline defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		SizeThresholdBytes:   10 * 1024 * 1024,
		ChunkSizeBytes:       5 * 1024 * 1024,
		SampleSize:           2000,
		MaxSamplesPerChunk:   200,
		MaxRows:              10000,
		PartitionSize:        5000,
		MaxUploadBytes:       50 * 1024 * 1024 * 1024,
		AlertFraudPercentage: 20,
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "shrike",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
