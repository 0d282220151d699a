package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sony/gobreaker"

	"castingai/internal/apierr"
	"castingai/internal/domain"
)

// OpenAIConfig configures the remote embedding provider.
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Dimensions      int
	Timeout         time.Duration
	BreakerMaxFails uint32
	BreakerOpenWait time.Duration
}

// openAIProvider calls the OpenAI-compatible embeddings endpoint, guarded by
// a circuit breaker so a flaky provider degrades the caller instead of
// hanging every request (spec §4.1 failure semantics).
type openAIProvider struct {
	client     sdk.Client
	model      string
	dimensions int
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
}

// NewOpenAI builds a Provider backed by the OpenAI embeddings API.
func NewOpenAI(cfg OpenAIConfig) Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, option.WithHTTPClient(http.DefaultClient))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenWait,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.BreakerMaxFails && counts.TotalFailures >= cfg.BreakerMaxFails
		},
	})

	return &openAIProvider{
		client:     sdk.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		breaker:    breaker,
	}
}

func (p *openAIProvider) Dimensions() int { return p.dimensions }

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.breaker.Execute(func() (any, error) {
		resp, err := p.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
			Model: p.model,
			Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apierr.Wrap(apierr.ProviderUnavailable, "embedding provider circuit open", err)
		}
		return nil, apierr.Wrap(apierr.ProviderUnavailable, "embedding request failed", err)
	}

	resp := res.(*sdk.CreateEmbeddingResponse)
	if len(resp.Data) != len(texts) {
		return nil, apierr.New(apierr.ProviderUnavailable, "embedding provider returned mismatched vector count")
	}

	out := make([]domain.Embedding, len(texts))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		normalize(vec)
		out[i] = domain.Embedding{
			ContentHash: contentHash(texts[i]),
			Vector:      vec,
		}
	}
	return out, nil
}

func contentHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
