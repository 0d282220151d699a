// Package config holds the process configuration struct and the loader that
// populates it from environment variables (with a .env overlay), following
// the teacher's internal/config layering: one struct per concern, loaded
// once at startup and passed down by value/pointer to every component.
package config

import "time"

// Config is the full process configuration for castingai-server and
// reindexctl. Load (loader.go) fills it from defaults and environment
// variables; SPEC_FULL.md §6 lists the main variable names.
type Config struct {
	Service       ServiceConfig
	Observability ObservabilityConfig
	Embedding     EmbeddingConfig
	Cache         CacheConfig
	VectorIndex   VectorIndexConfig
	IndexManager  IndexManagerConfig
	Memory        MemoryConfig
	Completion    CompletionConfig
	Experiment    ExperimentConfig
	Auth          AuthConfig
	Profiles      ProfilesConfig
}

// ServiceConfig controls process-level behavior: listen address, log file,
// log level.
type ServiceConfig struct {
	Name        string
	Environment string
	Version     string
	HTTPAddr    string
	LogPath     string
	LogLevel    string
}

// ObservabilityConfig controls OTel export.
type ObservabilityConfig struct {
	OTLPEndpoint string
	OTLPInsecure bool
}

// EmbeddingConfig configures the embedding provider (C1).
type EmbeddingConfig struct {
	Provider        string // "openai", "local"
	BaseURL         string
	APIKey          string
	Model           string
	Dimensions      int
	Timeout         time.Duration
	BreakerMaxFails uint32
	BreakerOpenWait time.Duration
}

// CacheConfig configures the two-tier cache (C2).
type CacheConfig struct {
	Tier1MaxItems     int64
	Tier1MaxCostBytes int64
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DefaultTTL        time.Duration
	CompressMinBytes  int
}

// VectorIndexConfig configures the pluggable vector index backend (C3).
type VectorIndexConfig struct {
	Backend    string // "local", "qdrant", "flat"
	DSN        string
	Collection string
	Dimensions int
	Metric     string // "cosine", "l2", "dot"
	DataDir    string // local backend durable snapshot directory
}

// IndexManagerConfig configures the background index-update worker (C6).
type IndexManagerConfig struct {
	Backend           string // "kafka", "memory"
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	MaxRetries        int
	RetryBaseDelay    time.Duration
	MaintenanceTick   time.Duration
	BackupDir         string
}

// MemoryConfig configures STM/LTM (C8/C9) and consolidation (C10).
type MemoryConfig struct {
	PostgresDSN            string
	STMMaxTurns            int
	STMTTL                 time.Duration
	EpisodicHalfLifeDays   float64
	ConsolidationTick      time.Duration
	ConsolidationThreshold float64 // theta_cons, default 0.6
	PruneImportance        float64 // theta_prune, default 0.2
	PruneRetention         float64 // default 0.1
	CompressionSimilarity  float64 // default 0.85
	CompressionMinCluster  int     // default 4 (>3 per spec)
}

// CompletionConfig configures the pluggable completion provider.
type CompletionConfig struct {
	Provider string // "anthropic", "openai"
	BaseURL  string // optional override, "openai" backend only
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// ExperimentConfig configures the traffic-splitting harness (C12).
type ExperimentConfig struct {
	ClickHouseDSN string
	SaltSeed      string
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// ProfilesConfig points at the out-of-scope talent admin system that owns
// TalentProfile records (spec.md §1/§6).
type ProfilesConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}
