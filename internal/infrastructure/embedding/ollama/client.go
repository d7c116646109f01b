package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/embedding"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/resilience"
)

const providerName = "ollama"

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// RateLimit is requests per second; <= 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Client embeds group prompts with Ollama's /api/embed endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RateLimit, cfg.Burst),
		executor:   executor,
	}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in one request; the result is index-aligned with texts.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ollama rate limit wait: %w", err)
		}
	}

	call := func(ctx context.Context) ([][]float32, error) {
		var response embedResponse
		req := embedRequest{Model: c.model, Input: texts}
		if err := embedding.PostJSON(ctx, c.httpClient, c.baseURL+"/api/embed", req, &response, providerName, "embed"); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}

	var (
		vectors [][]float32
		err     error
	)
	if c.executor != nil {
		vectors, err = resilience.Do(ctx, c.executor, "ollama.embed", call, embedding.Classify)
	} else {
		vectors, err = call(ctx)
	}
	if err != nil {
		return nil, embedding.WrapError("ollama embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingUnavailable,
			"ollama embed",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "ollama embed", fmt.Errorf("empty vector at index %d", i))
		}
	}
	return vectors, nil
}
