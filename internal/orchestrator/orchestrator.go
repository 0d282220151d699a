// Package orchestrator implements the Conversation Orchestrator (C11): the
// per-request pipeline that resolves a session, classifies intent, retrieves
// short- and long-term context, routes to the right downstream capability,
// and writes the exchange back into memory. Structurally grounded on the
// teacher's internal/agentd.app (one flat struct holding every wired
// dependency) and internal/agentd/handlers_chat.go's request lifecycle; the
// intent-routing table and memory-writeback rules are new code, implementing
// spec §4.11 directly since the teacher has no casting/talent domain of its
// own to route against.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"castingai/internal/apierr"
	"castingai/internal/cache"
	"castingai/internal/completion"
	"castingai/internal/consolidation"
	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/experiment"
	"castingai/internal/memory/episodic"
	"castingai/internal/memory/stm"
	"castingai/internal/nlp"
	"castingai/internal/ranking"
	"castingai/internal/scriptanalysis"
	"castingai/internal/search"
	"castingai/internal/usage"
)

// accurateConfidenceThreshold is the proxy for experiment.Outcome.Accurate
// when no ground-truth label exists for a conversational turn: an intent
// classification the analyzer itself is confident about is treated as an
// accurate turn for rollout-readiness purposes (spec §4.12's "accuracy_score"
// has no defined source for this domain, so routing confidence stands in).
const accurateConfidenceThreshold = 0.7

const (
	maxHistoryTurns            = 7
	ltmSimilarityTopK          = 3
	episodicWriteMinConfidence = 0.7
	minTurnImportance          = 0.3
	maxTurnImportance          = 0.95
	defaultSearchLimit         = 20
)

// SchedulingDelegate is the out-of-scope external scheduling collaborator
// that schedule_audition/check_availability route to (spec §4.11 step 4).
// Shares the exact shape of search.AvailabilityProvider since both model
// the same downstream capability from two different call sites.
type SchedulingDelegate = search.AvailabilityProvider

// Request is one inbound conversational turn.
type Request struct {
	SessionID string
	UserID    string
	Text      string
}

// Response is the pipeline's output for one turn.
type Response struct {
	SessionID      string
	Intent         domain.Intent
	Confidence     float64
	Content        string
	SearchResults  []domain.RankedResult
	ScriptAnalysis *scriptanalysis.Result
	Degraded       []domain.DegradedSignal
	Variant        string
}

// Orchestrator wires every component C11 depends on. Optional collaborators
// may be nil: without searchPipeline, search_talent goes to the completion
// fallback; without ranking, search results are not reranked; without
// scheduling or scriptPipeline, those branches reply with a fixed
// "not available" message; without consolidation, no tick is triggered.
type Orchestrator struct {
	analyzer       *nlp.Analyzer
	stmStore       *stm.Store
	episodicStore  *episodic.Store
	embedder       embedding.Provider
	searchPipeline *search.Pipeline
	rankingEngine  *ranking.Engine
	scriptPipeline *scriptanalysis.Pipeline
	scheduling     SchedulingDelegate
	completion     completion.Provider
	consolidation  *consolidation.Engine
	usageTracker   *usage.Tracker
	systemPrompts  map[string]string
	now            func() time.Time

	experiment     *experiment.Harness
	experimentName string

	modelCache *cache.ModelResponseCache
	convCache  *cache.ConversationCache
}

// UseCache wires C2's model-response and conversation caches in: the
// completion fallback (step 4's default branch) checks modelCache before
// calling the provider, and intent classification (step 2) checks convCache
// before re-running C7 on an utterance already seen in this session. Either
// argument may be nil to leave that call site uncached.
func (o *Orchestrator) UseCache(modelCache *cache.ModelResponseCache, convCache *cache.ConversationCache) {
	o.modelCache = modelCache
	o.convCache = convCache
}

// UseExperiment wires C12's traffic-splitting harness in: every Handle call
// is assigned a variant under experimentName and its outcome recorded on
// completion (spec §4.11's data-flow step "C12 picks a variant"). Passing a
// nil harness (the default) skips assignment entirely.
func (o *Orchestrator) UseExperiment(experimentName string, harness *experiment.Harness) {
	o.experimentName = experimentName
	o.experiment = harness
}

// New builds an Orchestrator. Every dependency past analyzer/stmStore/
// completion may be nil; the pipeline degrades gracefully per-step.
func New(
	analyzer *nlp.Analyzer,
	stmStore *stm.Store,
	episodicStore *episodic.Store,
	embedder embedding.Provider,
	searchPipeline *search.Pipeline,
	rankingEngine *ranking.Engine,
	scriptPipeline *scriptanalysis.Pipeline,
	scheduling SchedulingDelegate,
	completionProvider completion.Provider,
	consolidationEngine *consolidation.Engine,
	usageTracker *usage.Tracker,
) *Orchestrator {
	return &Orchestrator{
		analyzer:       analyzer,
		stmStore:       stmStore,
		episodicStore:  episodicStore,
		embedder:       embedder,
		searchPipeline: searchPipeline,
		rankingEngine:  rankingEngine,
		scriptPipeline: scriptPipeline,
		scheduling:     scheduling,
		completion:     completionProvider,
		consolidation:  consolidationEngine,
		usageTracker:   usageTracker,
		systemPrompts:  defaultSystemPrompts(),
		now:            time.Now,
	}
}

// preparedTurn holds the output of steps 1-3, shared by Handle and
// HandleStream.
type preparedTurn struct {
	sessionID    string
	intentResult domain.IntentResult
	recentTurns  []domain.Turn
	ltmItems     []episodic.Memory
}

// prepare runs steps 1-3: resolve the session, classify intent, and
// retrieve short/long-term context.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (preparedTurn, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := o.stmStore.Get(sessionID, maxHistoryTurns)

	intentResult, cached := o.cachedIntentResult(ctx, sessionID, req.Text)
	if !cached {
		result, err := o.analyzer.Analyze(ctx, req.Text, history)
		if err != nil {
			return preparedTurn{}, apierr.Wrap(apierr.Internal, "intent analysis failed", err)
		}
		intentResult = result
		if o.convCache != nil {
			o.convCache.Set(ctx, sessionID, utteranceHash(req.Text), intentResult)
		}
	}

	recentTurns, ltmItems, err := o.retrieveContext(ctx, sessionID, req.Text)
	if err != nil {
		return preparedTurn{}, err
	}

	return preparedTurn{sessionID: sessionID, intentResult: intentResult, recentTurns: recentTurns, ltmItems: ltmItems}, nil
}

// Handle runs the full six-step pipeline of spec §4.11.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	start := o.now()
	prep, err := o.prepare(ctx, req)
	if err != nil {
		return Response{}, err
	}
	sessionID := prep.sessionID
	intentResult := prep.intentResult
	recentTurns := prep.recentTurns
	ltmItems := prep.ltmItems

	resp := Response{SessionID: sessionID, Intent: intentResult.Intent, Confidence: intentResult.Confidence}
	resp.Variant = o.assignVariant(req.UserID)

	switch intentResult.Intent {
	case domain.IntentSearchTalent:
		if err := o.routeSearchTalent(ctx, &resp, req, intentResult); err != nil {
			return Response{}, err
		}
	case domain.IntentAnalyzeScript:
		if err := o.routeAnalyzeScript(ctx, &resp, req); err != nil {
			return Response{}, err
		}
	case domain.IntentScheduleAudition, domain.IntentCheckAvailability:
		if err := o.routeScheduling(ctx, &resp, intentResult); err != nil {
			return Response{}, err
		}
	default:
		if err := o.routeFallback(ctx, &resp, req, intentResult, recentTurns, ltmItems); err != nil {
			return Response{}, err
		}
	}

	importance := clamp(intentResult.Confidence, minTurnImportance, maxTurnImportance)
	now := o.now()
	o.stmStore.Append(sessionID, domain.Turn{Role: domain.RoleUser, Content: req.Text, Timestamp: now}, importance)
	o.stmStore.Append(sessionID, domain.Turn{Role: domain.RoleAssistant, Content: resp.Content, Timestamp: now}, importance)

	o.writeback(sessionID, req, resp, intentResult)
	o.recordExperimentOutcome(req, resp, intentResult, o.now().Sub(start))

	return resp, nil
}

// assignVariant picks this request's experiment variant, if an experiment
// harness is wired. Assignment failures (e.g. an unregistered experiment
// name) degrade to no variant rather than failing the turn.
func (o *Orchestrator) assignVariant(userID string) string {
	if o.experiment == nil || o.experimentName == "" {
		return ""
	}
	variant, err := o.experiment.Assign(userID, o.experimentName)
	if err != nil {
		log.Warn().Err(err).Str("experiment", o.experimentName).Msg("orchestrator: variant assignment failed")
		return ""
	}
	return variant
}

// recordExperimentOutcome is step 6's experiment bookkeeping: records this
// turn's response time and a confidence-based accuracy proxy against the
// assigned variant.
func (o *Orchestrator) recordExperimentOutcome(req Request, resp Response, intentResult domain.IntentResult, elapsed time.Duration) {
	if o.experiment == nil || resp.Variant == "" {
		return
	}
	o.experiment.Record(context.Background(), experiment.Outcome{
		ExperimentName: o.experimentName,
		UserID:         req.UserID,
		Variant:        resp.Variant,
		ResponseTime:   elapsed,
		Accurate:       intentResult.Confidence >= accurateConfidenceThreshold,
		RecordedAt:     o.now(),
	}, func(err error) {
		log.Warn().Err(err).Str("experiment", o.experimentName).Msg("orchestrator: outcome durable write failed")
	})
}

// cachedIntentResult is step 2's cache check: a reconnecting client repeating
// the same utterance in the same session skips C7 entirely (spec §4.2
// ConversationCache doc).
func (o *Orchestrator) cachedIntentResult(ctx context.Context, sessionID, text string) (domain.IntentResult, bool) {
	if o.convCache == nil {
		return domain.IntentResult{}, false
	}
	return o.convCache.Get(ctx, sessionID, utteranceHash(text))
}

func utteranceHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// retrieveContext is step 3: fetch recent STM turns and, concurrently,
// top-k LTM items by cosine similarity to the utterance embedding (spec §5:
// "retrieval + memory fetch + LTM similarity run concurrently").
func (o *Orchestrator) retrieveContext(ctx context.Context, sessionID, text string) ([]domain.Turn, []episodic.Memory, error) {
	var turns []domain.Turn
	var ltmItems []episodic.Memory

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		turns = o.stmStore.Get(sessionID, maxHistoryTurns)
		return nil
	})
	g.Go(func() error {
		if o.embedder == nil || o.episodicStore == nil {
			return nil
		}
		vecs, err := o.embedder.Embed(gctx, []string{text})
		if err != nil {
			return apierr.Wrap(apierr.ProviderUnavailable, "utterance embedding failed", err)
		}
		if len(vecs) == 0 {
			return nil
		}
		items, err := o.episodicStore.Similar(gctx, vecs[0].Vector, ltmSimilarityTopK)
		if err != nil {
			return apierr.Wrap(apierr.Persistence, "ltm similarity lookup failed", err)
		}
		ltmItems = items
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("orchestrator: context retrieval degraded")
		return turns, nil, nil
	}
	return turns, ltmItems, nil
}

// routeSearchTalent is step 4's search_talent branch: C4 with derived
// criteria, optionally reranked via C5 with an empty UserContext.
func (o *Orchestrator) routeSearchTalent(ctx context.Context, resp *Response, req Request, intentResult domain.IntentResult) error {
	if o.searchPipeline == nil {
		return o.routeFallback(ctx, resp, req, intentResult, nil, nil)
	}
	criteria := criteriaFromEntities(intentResult.Entities)
	result, err := o.searchPipeline.Search(ctx, req.Text, criteria, defaultSearchLimit)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "talent search failed", err)
	}
	resp.Degraded = result.Degraded

	ranked := result.Results
	if o.rankingEngine != nil {
		candidates := make([]ranking.Candidate, 0, len(result.Results))
		for _, r := range result.Results {
			profile := result.Profiles[r.TalentID]
			candidates = append(candidates, ranking.Candidate{Result: r, Profile: profile})
		}
		ranked = o.rankingEngine.Rank(candidates, ranking.UserContext{}, o.now())
	}
	resp.SearchResults = ranked
	resp.Content = searchSummary(ranked)
	return nil
}

// routeAnalyzeScript is step 4's analyze_script branch.
func (o *Orchestrator) routeAnalyzeScript(ctx context.Context, resp *Response, req Request) error {
	if o.scriptPipeline == nil {
		resp.Content = "Script analysis is not available right now."
		return nil
	}
	result, err := o.scriptPipeline.Analyze(ctx, req.Text)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "script analysis failed", err)
	}
	resp.ScriptAnalysis = &result
	resp.Content = scriptSummary(result)
	return nil
}

// routeScheduling is step 4's schedule_audition/check_availability branch:
// delegate to the external scheduling interface. The "names" entity (the
// only candidate identifier the NLP stage extracts for these intents) is
// used directly as the talent id — this pipeline has no name-to-id
// resolution collaborator wired in, a known limitation recorded in
// DESIGN.md.
func (o *Orchestrator) routeScheduling(ctx context.Context, resp *Response, intentResult domain.IntentResult) error {
	if o.scheduling == nil {
		resp.Content = "Scheduling isn't connected right now; please check back shortly."
		return nil
	}
	talentID := entityValue(intentResult.Entities, "names")
	if talentID == "" {
		resp.Content = "Which talent would you like to check?"
		return nil
	}
	var start, end *string
	if date := entityValue(intentResult.Entities, "date"); date != "" {
		start = &date
	}
	score, status, err := o.scheduling.Check(ctx, talentID, start, end)
	if err != nil {
		return apierr.Wrap(apierr.ProviderUnavailable, "scheduling check failed", err)
	}
	resp.Content = schedulingSummary(talentID, status, score)
	return nil
}

// routeFallback is step 4's default branch: call the completion provider
// with assembled context and a system prompt keyed by (intent, domain).
func (o *Orchestrator) routeFallback(ctx context.Context, resp *Response, req Request, intentResult domain.IntentResult, history []domain.Turn, ltmItems []episodic.Memory) error {
	if o.completion == nil {
		resp.Content = "I'm not able to respond right now; please try again shortly."
		return nil
	}
	system := o.systemPromptFor(intentResult.Intent, intentResult.Domain)
	messages := fallbackMessages(req, history, ltmItems)

	promptKey := completionCacheKey(system, messages)
	if o.modelCache != nil {
		if cached, ok := o.modelCache.Get(ctx, completionCacheModel, promptKey); ok {
			resp.Content = cached
			return nil
		}
	}

	out, err := o.completion.Complete(ctx, completionRequest(system, messages))
	if err != nil {
		return apierr.Wrap(apierr.ProviderUnavailable, "completion call failed", err)
	}
	resp.Content = out.Content
	if o.modelCache != nil {
		o.modelCache.Set(ctx, completionCacheModel, promptKey, out.Content)
	}
	if o.usageTracker != nil {
		o.usageTracker.Record(out.Model, out.InputTokens, out.OutputTokens)
	}
	return nil
}

// writeback is step 6: fire-and-forget episodic write + immediate
// consolidation trigger, decoupled from the caller's context since the
// client may have already received its response by the time this runs.
func (o *Orchestrator) writeback(sessionID string, req Request, resp Response, intentResult domain.IntentResult) {
	go func() {
		bgCtx := context.Background()
		if intentResult.Confidence >= episodicWriteMinConfidence && o.episodicStore != nil {
			event := map[string]any{
				"session_id": sessionID,
				"user_id":    req.UserID,
				"intent":     string(intentResult.Intent),
				"content":    req.Text,
				"response":   resp.Content,
			}
			valence := (intentResult.Sentiment + 1) / 2
			var vector []float32
			if o.embedder != nil {
				if vecs, err := o.embedder.Embed(bgCtx, []string{req.Text}); err == nil && len(vecs) == 1 {
					vector = vecs[0].Vector
				}
			}
			if err := o.episodicStore.StoreEvent(bgCtx, uuid.NewString(), event, intentResult.Confidence, valence, 0.3, vector); err != nil {
				log.Ctx(bgCtx).Warn().Err(err).Msg("orchestrator: episodic write failed")
			}
		}
		if o.stmStore.Occupancy(sessionID) >= o.stmStore.Capacity() && o.consolidation != nil {
			o.consolidation.Tick(bgCtx)
		}
	}()
}

// Turns returns a session's current short-term-memory turn log, backing
// the `GET /conversation/{id}` endpoint (§6).
func (o *Orchestrator) Turns(sessionID string) []domain.Turn {
	return o.stmStore.Get(sessionID, 0)
}

// EndSession discards a session's short-term memory outright, and its cached
// intent results when a conversation cache is wired, backing the
// `DELETE /conversation/{id}` endpoint (§6).
func (o *Orchestrator) EndSession(sessionID string) {
	o.stmStore.Delete(sessionID)
	if o.convCache != nil {
		o.convCache.InvalidateSession(context.Background(), sessionID)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func entityValue(entities []domain.Entity, entityType string) string {
	for _, e := range entities {
		if e.Type == entityType {
			return e.Value
		}
	}
	return ""
}
