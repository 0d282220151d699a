package completion

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	sdk "github.com/openai/openai-go/v2"
	"github.com/stretchr/testify/assert"

	"castingai/internal/config"
)

func testCompletionConfig(provider string) config.CompletionConfig {
	return config.CompletionConfig{
		Provider: provider,
		APIKey:   "test-key",
		Model:    "test-model",
	}
}

func TestAnthropicBuildParamsDefaultsModelAndMaxTokens(t *testing.T) {
	p := &anthropicProvider{model: "claude-default"}

	params := p.buildParams(Request{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	assert.Equal(t, anthropic.Model("claude-default"), params.Model)
	assert.Equal(t, int64(1024), params.MaxTokens)
	assert.Len(t, params.Messages, 1)
}

func TestAnthropicBuildParamsHonorsRequestOverrides(t *testing.T) {
	p := &anthropicProvider{model: "claude-default"}

	params := p.buildParams(Request{
		Model:     "claude-override",
		System:    "be terse",
		MaxTokens: 256,
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})

	assert.Equal(t, anthropic.Model("claude-override"), params.Model)
	assert.Equal(t, int64(256), params.MaxTokens)
	assert.Len(t, params.System, 1)
	assert.Equal(t, "be terse", params.System[0].Text)
	assert.Len(t, params.Messages, 2)
}

func TestOpenAIBuildParamsDefaultsModelAndPrependsSystemMessage(t *testing.T) {
	p := &openAIProvider{model: "gpt-default"}

	params := p.buildParams(Request{
		System:   "stay on task",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	assert.Equal(t, sdk.ChatModel("gpt-default"), params.Model)
	assert.Len(t, params.Messages, 2)
}

func TestOpenAIBuildParamsOmitsOptionalFieldsWhenUnset(t *testing.T) {
	p := &openAIProvider{model: "gpt-default"}

	params := p.buildParams(Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	assert.False(t, params.Temperature.Valid())
	assert.False(t, params.MaxTokens.Valid())
}

func TestFactorySelectsBackendByProviderName(t *testing.T) {
	_, err := New(testCompletionConfig("unknown"))
	assert.Error(t, err)

	anthropicProvider, err := New(testCompletionConfig("anthropic"))
	assert.NoError(t, err)
	assert.NotNil(t, anthropicProvider)

	openaiProvider, err := New(testCompletionConfig("openai"))
	assert.NoError(t, err)
	assert.NotNil(t, openaiProvider)
}
