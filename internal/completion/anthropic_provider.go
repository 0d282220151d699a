package completion

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"castingai/internal/apierr"
)

// AnthropicConfig configures the Anthropic-backed Provider.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds a Provider backed by the Anthropic Messages API,
// grounded on the teacher's anthropic.go message/system shape but issued
// through anthropic-sdk-go instead of a hand-built HTTP request.
func NewAnthropic(cfg AnthropicConfig) Provider {
	return &anthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	params := p.buildParams(req)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, apierr.Wrap(apierr.ProviderUnavailable, "anthropic completion failed", err)
	}

	var content string
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				content += tb.Text
			}
		}
	}

	return Response{
		Content:      content,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (p *anthropicProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	params := p.buildParams(req)
	out := make(chan Chunk)

	go func() {
		defer close(out)
		stream := p.client.Messages.NewStreaming(ctx, params)
		var full string
		model := string(params.Model)
		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
					full += textDelta.Text
					out <- Chunk{Delta: textDelta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Done: true, Final: &Response{Content: full, Model: model}}
			return
		}
		out <- Chunk{Done: true, Final: &Response{Content: full, Model: model}}
	}()

	return out, nil
}

func (p *anthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}
