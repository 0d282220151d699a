package orchestrator

import (
	"context"
	"time"

	"castingai/internal/domain"
)

// StreamChunk is one piece of a streamed conversational response, mirroring
// completion.Chunk's shape (partial delta, or a terminal chunk carrying the
// final Response) so the API layer's SSE writer (grounded on the teacher's
// agentStreamTracer) can treat both the same way. Ordering within a stream
// is strict: every Delta chunk precedes the terminal Done chunk.
type StreamChunk struct {
	Delta string
	Done  bool
	Final *Response
}

// HandleStream runs the same pipeline as Handle but streams the assistant
// content as it is produced. Only the completion-backed fallback route
// streams incrementally; every other route computes its full response
// synchronously and emits it as a single delta before the terminal chunk,
// since search/script results have no meaningful partial form.
//
// Cancellation: if ctx is cancelled mid-flight, outstanding I/O is
// abandoned, step 5 (STM turn append) is skipped, and step 6 (fire-and-
// forget writeback) still runs iff a non-empty response was produced before
// cancellation (spec §4.11 "Cancellation").
func (o *Orchestrator) HandleStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	start := o.now()
	prep, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go o.runStream(ctx, req, prep, out, start)
	return out, nil
}

func (o *Orchestrator) runStream(ctx context.Context, req Request, prep preparedTurn, out chan<- StreamChunk, start time.Time) {
	defer close(out)

	resp := Response{SessionID: prep.sessionID, Intent: prep.intentResult.Intent, Confidence: prep.intentResult.Confidence}
	resp.Variant = o.assignVariant(req.UserID)
	var cancelled bool

	switch prep.intentResult.Intent {
	case domain.IntentSearchTalent:
		if err := o.routeSearchTalent(ctx, &resp, req, prep.intentResult); err != nil {
			return
		}
		cancelled = !emitSingle(ctx, out, resp.Content)
	case domain.IntentAnalyzeScript:
		if err := o.routeAnalyzeScript(ctx, &resp, req); err != nil {
			return
		}
		cancelled = !emitSingle(ctx, out, resp.Content)
	case domain.IntentScheduleAudition, domain.IntentCheckAvailability:
		if err := o.routeScheduling(ctx, &resp, prep.intentResult); err != nil {
			return
		}
		cancelled = !emitSingle(ctx, out, resp.Content)
	default:
		var ok bool
		cancelled, ok = o.streamFallback(ctx, &resp, req, prep, out)
		if !ok {
			return
		}
	}

	if !cancelled {
		importance := clamp(prep.intentResult.Confidence, minTurnImportance, maxTurnImportance)
		now := o.now()
		o.stmStore.Append(prep.sessionID, domain.Turn{Role: domain.RoleUser, Content: req.Text, Timestamp: now}, importance)
		o.stmStore.Append(prep.sessionID, domain.Turn{Role: domain.RoleAssistant, Content: resp.Content, Timestamp: now}, importance)
	}

	if resp.Content != "" {
		o.writeback(prep.sessionID, req, resp, prep.intentResult)
	}
	o.recordExperimentOutcome(req, resp, prep.intentResult, o.now().Sub(start))

	select {
	case out <- StreamChunk{Done: true, Final: &resp}:
	case <-ctx.Done():
	}
}

// emitSingle sends content as one delta chunk, reporting whether it was
// delivered before ctx was cancelled.
func emitSingle(ctx context.Context, out chan<- StreamChunk, content string) bool {
	select {
	case out <- StreamChunk{Delta: content}:
		return true
	case <-ctx.Done():
		return false
	}
}

// streamFallback streams the completion provider's response incrementally
// when available, falling back to a single delta chunk otherwise. Returns
// (cancelled, ok) where ok is false if routing failed outright.
func (o *Orchestrator) streamFallback(ctx context.Context, resp *Response, req Request, prep preparedTurn, out chan<- StreamChunk) (cancelled bool, ok bool) {
	if o.completion == nil {
		if err := o.routeFallback(ctx, resp, req, prep.intentResult, prep.recentTurns, prep.ltmItems); err != nil {
			return false, false
		}
		return !emitSingle(ctx, out, resp.Content), true
	}

	system := o.systemPromptFor(prep.intentResult.Intent, prep.intentResult.Domain)
	messages := fallbackMessages(req, prep.recentTurns, prep.ltmItems)

	chunks, err := o.completion.Stream(ctx, completionRequest(system, messages))
	if err != nil {
		return false, false
	}

	var full string
	for {
		select {
		case chunk, open := <-chunks:
			if !open {
				resp.Content = full
				return false, true
			}
			if chunk.Delta != "" {
				full += chunk.Delta
				if !emitSingle(ctx, out, chunk.Delta) {
					resp.Content = full
					return true, true
				}
			}
			if chunk.Done {
				if chunk.Final != nil {
					full = chunk.Final.Content
					if o.usageTracker != nil {
						o.usageTracker.Record(chunk.Final.Model, chunk.Final.InputTokens, chunk.Final.OutputTokens)
					}
				}
				resp.Content = full
				return false, true
			}
		case <-ctx.Done():
			resp.Content = full
			return true, true
		}
	}
}
