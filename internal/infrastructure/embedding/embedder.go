package embedding

import (
	"context"
	"errors"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type ImageEmbedder interface {
	EmbedImage(ctx context.Context, imageURL string) ([]float32, error)
}

// Embedder joins a text provider and an image provider into one
// ports.Embedder. Both must produce vectors in the same space. Either side
// may be nil; calls to a missing side fail with domain.ErrEmbeddingUnavailable.
type Embedder struct {
	text  TextEmbedder
	image ImageEmbedder
}

func New(text TextEmbedder, image ImageEmbedder) *Embedder {
	return &Embedder{text: text, image: image}
}

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if e.text == nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed text", errors.New("no text provider configured"))
	}
	return e.text.EmbedText(ctx, text)
}

func (e *Embedder) EmbedImage(ctx context.Context, imageURL string) ([]float32, error) {
	if e.image == nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed image", errors.New("no image provider configured"))
	}
	return e.image.EmbedImage(ctx, imageURL)
}

// ImageEmbeddingAvailable satisfies ports.ImageCapability.
func (e *Embedder) ImageEmbeddingAvailable() bool {
	return e.image != nil
}
