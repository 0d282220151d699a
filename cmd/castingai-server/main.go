// Command castingai-server is the primary entrypoint: it wires every
// component in SPEC_FULL.md into one process and serves the HTTP/WebSocket
// API (C15) until SIGINT/SIGTERM, grounded on the teacher's
// cmd/orchestrator/main.go bootstrap sequence (config.Load -> InitLogger ->
// component construction -> signal.NotifyContext) and cmd/webui/main.go's
// graceful-shutdown goroutine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"castingai/internal/api"
	"castingai/internal/cache"
	"castingai/internal/completion"
	"castingai/internal/config"
	"castingai/internal/consolidation"
	"castingai/internal/embedding"
	"castingai/internal/experiment"
	"castingai/internal/health"
	"castingai/internal/indexmanager"
	"castingai/internal/memory/episodic"
	"castingai/internal/memory/procedural"
	"castingai/internal/memory/semanticgraph"
	"castingai/internal/memory/stm"
	"castingai/internal/memory/storage"
	"castingai/internal/nlp"
	"castingai/internal/observability"
	"castingai/internal/orchestrator"
	"castingai/internal/profiles"
	"castingai/internal/ranking"
	"castingai/internal/scriptanalysis"
	"castingai/internal/search"
	"castingai/internal/usage"
	"castingai/internal/vectorindex"
	"castingai/internal/workerpool"
)

// experimentName is the default A/B test registered at startup: comparing
// the configured completion model against itself-with-a-cheaper-model is
// the one rollout decision spec.md's §4.12 example scenario describes.
const experimentName = "completion_model_variant"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("castingai-server")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.Service.LogPath, cfg.Service.LogLevel)

	baseCtx := context.Background()

	shutdownOTel, err := observability.Init(baseCtx, observability.Config{
		Endpoint:       cfg.Observability.OTLPEndpoint,
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		Insecure:       cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	cacheStore, err := cache.New(cache.Config{
		Tier1MaxItems:     cfg.Cache.Tier1MaxItems,
		Tier1MaxCostBytes: cfg.Cache.Tier1MaxCostBytes,
		RedisAddr:         cfg.Cache.RedisAddr,
		RedisPassword:     cfg.Cache.RedisPassword,
		RedisDB:           cfg.Cache.RedisDB,
		DefaultTTL:        cfg.Cache.DefaultTTL,
		CompressMinBytes:  cfg.Cache.CompressMinBytes,
	})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	embeddingCache := cache.NewEmbeddingCache(cacheStore, cfg.Cache.DefaultTTL)
	modelCache := cache.NewModelResponseCache(cacheStore, cfg.Cache.DefaultTTL)
	convCache := cache.NewConversationCache(cacheStore, cfg.Cache.DefaultTTL)
	vsearchCache := cache.NewVectorSearchCache(cacheStore, cfg.Cache.DefaultTTL)

	embedder := embedding.New(cfg.Embedding, embeddingCache)

	index, err := vectorindex.New(baseCtx, cfg.VectorIndex)
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}

	profileClient := profiles.New(profiles.Config{
		BaseURL: cfg.Profiles.BaseURL,
		APIKey:  cfg.Profiles.APIKey,
		Timeout: cfg.Profiles.Timeout,
	}, nil)

	indexManager := indexmanager.New(cfg.IndexManager, index, embedder, profileClient)
	indexManager.UseWorkerPool(workerpool.New(0))

	searchPipeline := search.New(embedder, index, profileClient, nil)
	searchPipeline.UseCache(vsearchCache)
	rankingEngine := ranking.New(nil)

	analyzer, err := nlp.New(baseCtx, embedder)
	if err != nil {
		return fmt.Errorf("init nlp analyzer: %w", err)
	}

	completionProvider, err := completion.New(cfg.Completion)
	if err != nil {
		return fmt.Errorf("init completion provider: %w", err)
	}
	scriptPipeline := scriptanalysis.New(completionProvider, cfg.Completion.Model)

	stmStore := stm.New(stm.Config{
		MaxTurns: cfg.Memory.STMMaxTurns,
		TTL:      cfg.Memory.STMTTL,
	})

	var episodicStore *episodic.Store
	var semanticStore *semanticgraph.Store
	var proceduralStore *procedural.Store
	if cfg.Memory.PostgresDSN != "" {
		pool, err := storage.Open(baseCtx, cfg.Memory.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open ltm storage: %w", err)
		}
		episodicStore = episodic.New(pool)
		semanticStore = semanticgraph.New(pool)
		proceduralStore = procedural.New(pool)
	} else {
		log.Warn().Msg("MEMORY_POSTGRES_DSN not set, long-term memory disabled")
	}

	consolidationEngine := consolidation.New(cfg.Memory, stmStore, episodicStore, semanticStore, proceduralStore, analyzer, embedder)

	usageTracker := usage.New(usage.DefaultPricing())

	orch := orchestrator.New(
		analyzer,
		stmStore,
		episodicStore,
		embedder,
		searchPipeline,
		rankingEngine,
		scriptPipeline,
		nil,
		completionProvider,
		consolidationEngine,
		usageTracker,
	)
	orch.UseCache(modelCache, convCache)

	experimentHarness, err := buildExperimentHarness(baseCtx, cfg.Experiment)
	if err != nil {
		log.Warn().Err(err).Msg("experiment harness init failed, continuing without it")
	}
	if experimentHarness != nil {
		if err := experimentHarness.Register(experiment.Spec{
			Name: experimentName,
			Variants: []experiment.Variant{
				{Name: "control", Weight: 0.8},
				{Name: "cheaper_model", Weight: 0.2},
			},
		}); err != nil {
			log.Warn().Err(err).Msg("experiment spec registration failed")
		} else {
			orch.UseExperiment(experimentName, experimentHarness)
		}
		defer func() {
			if cerr := experimentHarness.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("error closing experiment harness durable log")
			}
		}()
	}

	healthRegistry := buildHealthRegistry(embedder, completionProvider, index)
	metrics := health.NewMetrics(prometheus.NewRegistry())

	apiServer := api.NewServer(
		cfg.Auth,
		orch,
		searchPipeline,
		index,
		indexManager,
		scriptPipeline,
		usageTracker,
		healthRegistry,
		metrics,
		prometheus.DefaultGatherer,
		cfg.VectorIndex.Dimensions,
	)

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go indexManager.Run(ctx)
	go consolidationEngine.Run(ctx)

	httpServer := &http.Server{Addr: cfg.Service.HTTPAddr, Handler: apiServer}

	go func() {
		log.Info().Str("addr", cfg.Service.HTTPAddr).Msg("castingai-server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server terminated")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	log.Info().Msg("castingai-server stopped")
	return nil
}

// buildExperimentHarness selects the durable outcome log: ClickHouse when a
// DSN is configured, else none (outcomes stay in the in-memory ring). The
// Postgres sink in internal/experiment is not used here.
func buildExperimentHarness(ctx context.Context, cfg config.ExperimentConfig) (*experiment.Harness, error) {
	if cfg.ClickHouseDSN != "" {
		chLog, err := experiment.NewClickHouseLog(ctx, cfg.ClickHouseDSN, "castingai", "experiment_outcomes")
		if err != nil {
			return nil, fmt.Errorf("init clickhouse experiment log: %w", err)
		}
		return experiment.New(chLog), nil
	}
	return experiment.New(nil), nil
}

// buildHealthRegistry wires the four §4.13 check kinds: dependency pings
// for the embedding/completion providers and the vector index, plus the
// host resource envelope.
func buildHealthRegistry(embedder embedding.Provider, completionProvider completion.Provider, index vectorindex.Index) *health.Registry {
	checks := []health.Checker{
		health.NewDependencyCheck("embedding_provider", func(ctx context.Context) error {
			_, err := embedder.Embed(ctx, []string{"health check"})
			return err
		}),
		health.NewMLRoundTripCheck("completion_provider", 2*time.Second, func(ctx context.Context) error {
			_, err := completionProvider.Complete(ctx, completion.Request{Messages: []completion.Message{{Role: "user", Content: "ping"}}, MaxTokens: 1})
			return err
		}),
		health.NewDependencyCheck("vector_index", func(ctx context.Context) error {
			_, err := index.Count(ctx)
			return err
		}),
		health.NewResourceCheck(health.ResourceThresholds{
			MaxMemoryPercent: 90,
			MaxCPUPercent:    90,
			MaxDiskPercent:   90,
		}),
	}
	return health.New(5*time.Second, checks...)
}
