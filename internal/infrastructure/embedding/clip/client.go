package clip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/embedding"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/resilience"
)

const providerName = "clip"

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// RateLimit is requests per second; <= 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Client talks to a CLIP-style service exposing both towers: /embed/image
// downloads and encodes an image, /embed/text encodes a prompt into the
// same space.
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
		timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   executor,
	}
}

type imageRequest struct {
	Model    string `json:"model,omitempty"`
	ImageURL string `json:"image_url"`
}

type textRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *Client) EmbedImage(ctx context.Context, imageURL string) ([]float32, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "clip embed image", errors.New("empty image url"))
	}
	return c.embed(ctx, "/embed/image", "embed_image", imageRequest{Model: c.model, ImageURL: imageURL})
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "clip embed text", errors.New("empty text"))
	}
	return c.embed(ctx, "/embed/text", "embed_text", textRequest{Model: c.model, Text: text})
}

func (c *Client) embed(ctx context.Context, path, operation string, payload any) ([]float32, error) {
	op := "clip " + strings.ReplaceAll(operation, "_", " ")
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("clip rate limit wait: %w", err)
		}
	}

	call := func(ctx context.Context) ([]float32, error) {
		var response embedResponse
		if err := embedding.PostJSON(ctx, c.httpClient, c.baseURL+path, payload, &response, providerName, operation); err != nil {
			return nil, err
		}
		return response.Embedding, nil
	}

	var (
		vec []float32
		err error
	)
	if c.executor != nil {
		vec, err = resilience.Do(ctx, c.executor, "clip."+operation, call, embedding.Classify)
	} else {
		vec, err = call(ctx)
	}
	if err != nil {
		return nil, embedding.WrapError(op, err)
	}
	if len(vec) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, op, errors.New("empty embedding"))
	}
	return vec, nil
}
