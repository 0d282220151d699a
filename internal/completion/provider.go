// Package completion abstracts the conversational completion backend (C11
// depends only on this interface, per SPEC_FULL.md §4.11b/"abstract as a
// capability set"). Two concrete backends: Anthropic and OpenAI, selected
// by config.CompletionConfig.Provider — grounded on the teacher's
// anthropic.go / completions.go HTTP-proxy handlers, rewritten against the
// teacher's own anthropic-sdk-go / openai-go/v2 SDK dependencies instead of
// their hand-rolled net/http + echo request proxying.
package completion

import "context"

// Message is one turn in a completion request.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Request is a single non-streaming (or streamed) completion call.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the result of a non-streaming completion.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Chunk is one piece of a streamed completion.
type Chunk struct {
	Delta string
	Done  bool
	Final *Response // set only on the terminal chunk
}

// Provider is the capability set the orchestrator depends on.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
