package completion

import (
	"context"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"castingai/internal/apierr"
)

// OpenAIConfig configures the OpenAI-backed Provider.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type openAIProvider struct {
	client sdk.Client
	model  string
}

// NewOpenAI builds a Provider backed by the OpenAI chat completions API.
func NewOpenAI(cfg OpenAIConfig) Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, option.WithHTTPClient(http.DefaultClient))

	return &openAIProvider{
		client: sdk.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (p *openAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	params := p.buildParams(req)
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, apierr.Wrap(apierr.ProviderUnavailable, "openai completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, apierr.New(apierr.ProviderUnavailable, "openai completion returned no choices")
	}

	return Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (p *openAIProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	params := p.buildParams(req)
	out := make(chan Chunk)

	go func() {
		defer close(out)
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		var full string
		model := string(params.Model)
		for stream.Next() {
			chunk := stream.Current()
			if model == "" {
				model = chunk.Model
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full += delta
			out <- Chunk{Delta: delta}
		}
		// stream.Err() is not surfaced as a distinct chunk: the caller sees a
		// best-effort final response either way, matching the Anthropic
		// backend's terminal-chunk shape.
		out <- Chunk{Done: true, Final: &Response{Content: full, Model: model}}
	}()

	return out, nil
}

func (p *openAIProvider) buildParams(req Request) sdk.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			messages = append(messages, sdk.AssistantMessage(m.Content))
		} else {
			messages = append(messages, sdk.UserMessage(m.Content))
		}
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}
	return params
}
