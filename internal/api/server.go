// Package api implements the HTTP/WebSocket surface (C15): the conversation,
// search, script-analysis, usage-reporting, and health endpoints of spec §6,
// plus the /ws/chat/{conversation_id} streaming socket. Structurally
// grounded on the teacher's internal/httpapi.Server (one struct holding
// every wired dependency, a registerRoutes method, one handler per route)
// but swapping http.ServeMux for go-chi/chi/v5 the way
// 2lar-b2/backend2/interfaces/http/rest/router.go lays out its middleware
// stack and nested route groups, since the teacher's flat mux has no
// analogue for chi path params, scoped middleware, or the JWT/validator
// wiring this spec needs.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"castingai/internal/config"
	"castingai/internal/health"
	"castingai/internal/indexmanager"
	"castingai/internal/orchestrator"
	"castingai/internal/scriptanalysis"
	"castingai/internal/search"
	"castingai/internal/usage"
	"castingai/internal/vectorindex"
)

// Server wires every dependency the HTTP layer routes to. Optional
// collaborators (indexManager, scriptPipeline, usageTracker) may be nil; the
// corresponding handlers respond with apierr.ProviderUnavailable. A nil
// metrics turns request metrics off.
type Server struct {
	cfg          config.AuthConfig
	router       chi.Router
	orchestrator *orchestrator.Orchestrator
	search       *search.Pipeline
	index        vectorindex.Index
	indexManager *indexmanager.Manager
	scriptPipe   *scriptanalysis.Pipeline
	usageTracker *usage.Tracker
	health       *health.Registry
	metrics      *health.Metrics
	gatherer     prometheus.Gatherer
	vectorDims   int
	validate     *requestValidator
	now          func() time.Time
}

// NewServer builds a Server and registers every route.
func NewServer(
	authCfg config.AuthConfig,
	orch *orchestrator.Orchestrator,
	searchPipeline *search.Pipeline,
	index vectorindex.Index,
	indexManager *indexmanager.Manager,
	scriptPipe *scriptanalysis.Pipeline,
	usageTracker *usage.Tracker,
	healthRegistry *health.Registry,
	metrics *health.Metrics,
	gatherer prometheus.Gatherer,
	vectorDims int,
) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:          authCfg,
		orchestrator: orch,
		search:       searchPipeline,
		index:        index,
		indexManager: indexManager,
		scriptPipe:   scriptPipe,
		usageTracker: usageTracker,
		health:       healthRegistry,
		metrics:      metrics,
		gatherer:     gatherer,
		vectorDims:   vectorDims,
		validate:     getValidator(),
		now:          time.Now,
	}
	s.router = s.newRouter()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metricsMiddleware)
	r.Use(requestLogger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	r.Handle("/metrics", s.metricsHandler())

	r.Route("/conversation", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/{conversationID}", s.handleGetConversation)
		r.Delete("/{conversationID}", s.handleDeleteConversation)
	})

	r.Route("/search", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/talent/semantic", s.handleSemanticSearch)
		r.Post("/talent/similar/{talentID}", s.handleSimilarTalent)
		r.Route("/index", func(r chi.Router) {
			r.Post("/talent", s.handleIndexTalent)
			r.Delete("/talent/{talentID}", s.handleDeindexTalent)
			r.Post("/reindex", s.handleReindex)
			r.Get("/stats", s.handleIndexStats)
		})
	})

	r.Route("/ai", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/analyze/script", s.handleAnalyzeScript)
		r.Get("/usage/report", s.handleUsageReport)
	})

	r.Get("/ws/chat/{conversationID}", s.handleWebSocketChat)

	return r
}
