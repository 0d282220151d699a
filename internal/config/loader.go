package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env (if present) then overlays environment variables onto a
// defaulted Config, mirroring the teacher's Load() — defaults first, then
// env overrides, with firstNonEmpty fallback chains for renamed vars.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		Service: ServiceConfig{
			Name:        "castingai-server",
			Environment: "development",
			Version:     "dev",
			HTTPAddr:    ":8080",
			LogLevel:    "info",
		},
		Embedding: EmbeddingConfig{
			Provider:        "local",
			Model:           "text-embedding-3-small",
			Dimensions:      1536,
			Timeout:         10 * time.Second,
			BreakerMaxFails: 5,
			BreakerOpenWait: 30 * time.Second,
		},
		Cache: CacheConfig{
			Tier1MaxItems:     100_000,
			Tier1MaxCostBytes: 64 << 20,
			RedisAddr:         "localhost:6379",
			DefaultTTL:        15 * time.Minute,
			CompressMinBytes:  1024,
		},
		VectorIndex: VectorIndexConfig{
			Backend:    "local",
			Collection: "talents",
			Dimensions: 1536,
			Metric:     "cosine",
			DataDir:    "./data/vectorindex",
		},
		IndexManager: IndexManagerConfig{
			Backend:         "memory",
			KafkaTopic:      "castingai.index-updates",
			KafkaGroupID:    "castingai-indexmanager",
			MaxRetries:      5,
			RetryBaseDelay:  500 * time.Millisecond,
			MaintenanceTick: time.Hour,
			BackupDir:       "./data/backups",
		},
		Memory: MemoryConfig{
			STMMaxTurns:            7,
			STMTTL:                 30 * time.Minute,
			EpisodicHalfLifeDays:   7,
			ConsolidationTick:      30 * time.Minute,
			ConsolidationThreshold: 0.6,
			PruneImportance:        0.2,
			PruneRetention:         0.1,
			CompressionSimilarity:  0.85,
			CompressionMinCluster:  4,
		},
		Completion: CompletionConfig{
			Provider: "anthropic",
			Model:    "claude-3-5-haiku-latest",
			Timeout:  30 * time.Second,
		},
		Experiment: ExperimentConfig{
			SaltSeed: "castingai-experiment",
		},
	}

	cfg.Service.Name = firstNonEmpty(env("SERVICE_NAME"), cfg.Service.Name)
	cfg.Service.Environment = firstNonEmpty(env("ENVIRONMENT"), cfg.Service.Environment)
	cfg.Service.Version = firstNonEmpty(env("SERVICE_VERSION"), cfg.Service.Version)
	cfg.Service.HTTPAddr = firstNonEmpty(env("HTTP_ADDR"), cfg.Service.HTTPAddr)
	cfg.Service.LogPath = env("LOG_PATH")
	cfg.Service.LogLevel = firstNonEmpty(env("LOG_LEVEL"), cfg.Service.LogLevel)

	cfg.Observability.OTLPEndpoint = env("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Observability.OTLPInsecure = parseBool(env("OTEL_EXPORTER_OTLP_INSECURE"), true)

	cfg.Embedding.Provider = firstNonEmpty(env("EMBEDDING_PROVIDER"), cfg.Embedding.Provider)
	cfg.Embedding.BaseURL = firstNonEmpty(env("OPENAI_BASE_URL"), env("EMBEDDING_BASE_URL"))
	cfg.Embedding.APIKey = firstNonEmpty(env("OPENAI_API_KEY"), env("EMBEDDING_API_KEY"))
	cfg.Embedding.Model = firstNonEmpty(env("EMBEDDING_MODEL"), cfg.Embedding.Model)
	cfg.Embedding.Dimensions = parseInt(env("EMBEDDING_DIMENSIONS"), cfg.Embedding.Dimensions)
	cfg.Embedding.Timeout = parseDuration(env("EMBEDDING_TIMEOUT"), cfg.Embedding.Timeout)
	cfg.Embedding.BreakerMaxFails = uint32(parseInt(env("EMBEDDING_BREAKER_MAX_FAILS"), int(cfg.Embedding.BreakerMaxFails)))
	cfg.Embedding.BreakerOpenWait = parseDuration(env("EMBEDDING_BREAKER_OPEN_WAIT"), cfg.Embedding.BreakerOpenWait)

	cfg.Cache.Tier1MaxItems = int64(parseInt(env("CACHE_TIER1_MAX_ITEMS"), int(cfg.Cache.Tier1MaxItems)))
	cfg.Cache.Tier1MaxCostBytes = int64(parseInt(env("CACHE_TIER1_MAX_COST_BYTES"), int(cfg.Cache.Tier1MaxCostBytes)))
	cfg.Cache.RedisAddr = firstNonEmpty(env("REDIS_ADDR"), cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = env("REDIS_PASSWORD")
	cfg.Cache.RedisDB = parseInt(env("REDIS_DB"), 0)
	cfg.Cache.DefaultTTL = parseDuration(env("CACHE_DEFAULT_TTL"), cfg.Cache.DefaultTTL)
	cfg.Cache.CompressMinBytes = parseInt(env("CACHE_COMPRESS_MIN_BYTES"), cfg.Cache.CompressMinBytes)

	cfg.VectorIndex.Backend = firstNonEmpty(env("VECTOR_INDEX_BACKEND"), cfg.VectorIndex.Backend)
	cfg.VectorIndex.DSN = env("VECTOR_INDEX_DSN")
	cfg.VectorIndex.Collection = firstNonEmpty(env("VECTOR_INDEX_COLLECTION"), cfg.VectorIndex.Collection)
	cfg.VectorIndex.Dimensions = parseInt(env("VECTOR_INDEX_DIMENSIONS"), cfg.VectorIndex.Dimensions)
	cfg.VectorIndex.Metric = firstNonEmpty(env("VECTOR_INDEX_METRIC"), cfg.VectorIndex.Metric)
	cfg.VectorIndex.DataDir = firstNonEmpty(env("VECTOR_INDEX_DATA_DIR"), cfg.VectorIndex.DataDir)

	cfg.IndexManager.Backend = firstNonEmpty(env("INDEX_MANAGER_BACKEND"), cfg.IndexManager.Backend)
	cfg.IndexManager.KafkaBrokers = splitCSV(env("KAFKA_BROKERS"))
	cfg.IndexManager.KafkaTopic = firstNonEmpty(env("KAFKA_TOPIC"), cfg.IndexManager.KafkaTopic)
	cfg.IndexManager.KafkaGroupID = firstNonEmpty(env("KAFKA_GROUP_ID"), cfg.IndexManager.KafkaGroupID)
	cfg.IndexManager.MaxRetries = parseInt(env("INDEX_MANAGER_MAX_RETRIES"), cfg.IndexManager.MaxRetries)
	cfg.IndexManager.RetryBaseDelay = parseDuration(env("INDEX_MANAGER_RETRY_BASE_DELAY"), cfg.IndexManager.RetryBaseDelay)
	cfg.IndexManager.MaintenanceTick = parseDuration(env("INDEX_MANAGER_MAINTENANCE_TICK"), cfg.IndexManager.MaintenanceTick)
	cfg.IndexManager.BackupDir = firstNonEmpty(env("INDEX_MANAGER_BACKUP_DIR"), cfg.IndexManager.BackupDir)

	cfg.Memory.PostgresDSN = env("MEMORY_POSTGRES_DSN")
	cfg.Memory.STMMaxTurns = parseInt(env("MEMORY_STM_MAX_TURNS"), cfg.Memory.STMMaxTurns)
	cfg.Memory.STMTTL = parseDuration(env("MEMORY_STM_TTL"), cfg.Memory.STMTTL)
	cfg.Memory.EpisodicHalfLifeDays = parseFloat(env("MEMORY_EPISODIC_HALF_LIFE_DAYS"), cfg.Memory.EpisodicHalfLifeDays)
	cfg.Memory.ConsolidationTick = parseDuration(env("MEMORY_CONSOLIDATION_TICK"), cfg.Memory.ConsolidationTick)
	cfg.Memory.ConsolidationThreshold = parseFloat(env("THETA_CONS"), cfg.Memory.ConsolidationThreshold)
	cfg.Memory.PruneImportance = parseFloat(env("THETA_PRUNE"), cfg.Memory.PruneImportance)
	cfg.Memory.PruneRetention = parseFloat(env("MEMORY_PRUNE_RETENTION"), cfg.Memory.PruneRetention)
	cfg.Memory.CompressionSimilarity = parseFloat(env("MEMORY_COMPRESSION_SIMILARITY"), cfg.Memory.CompressionSimilarity)
	cfg.Memory.CompressionMinCluster = parseInt(env("MEMORY_COMPRESSION_MIN_CLUSTER"), cfg.Memory.CompressionMinCluster)

	cfg.Completion.Provider = firstNonEmpty(env("COMPLETION_PROVIDER"), cfg.Completion.Provider)
	cfg.Completion.BaseURL = env("COMPLETION_BASE_URL")
	cfg.Completion.APIKey = firstNonEmpty(env("ANTHROPIC_API_KEY"), env("OPENAI_API_KEY"), env("COMPLETION_API_KEY"))
	cfg.Completion.Model = firstNonEmpty(env("COMPLETION_MODEL"), cfg.Completion.Model)
	cfg.Completion.Timeout = parseDuration(env("COMPLETION_TIMEOUT"), cfg.Completion.Timeout)

	cfg.Experiment.ClickHouseDSN = env("CLICKHOUSE_DSN")
	cfg.Experiment.SaltSeed = firstNonEmpty(env("EXPERIMENT_SALT_SEED"), cfg.Experiment.SaltSeed)

	cfg.Auth.JWTSecret = env("JWT_SECRET")
	cfg.Auth.Issuer = env("JWT_ISSUER")
	cfg.Auth.Audience = env("JWT_AUDIENCE")

	cfg.Profiles.BaseURL = env("PROFILES_BASE_URL")
	cfg.Profiles.APIKey = env("PROFILES_API_KEY")
	cfg.Profiles.Timeout = parseDuration(env("PROFILES_TIMEOUT"), 10*time.Second)

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
