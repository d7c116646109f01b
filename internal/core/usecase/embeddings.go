package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
)

const (
	embeddingKindText  = "text"
	embeddingKindImage = "image"

	defaultEmbedConcurrency = 3
)

// embeddingCache memoizes vectors for the lifetime of one scan. It is owned
// by a single Assign call and never shared between scans.
type embeddingCache struct {
	text  map[string][]float32
	image map[string][]float32
}

func newEmbeddingCache() *embeddingCache {
	return &embeddingCache{
		text:  make(map[string][]float32),
		image: make(map[string][]float32),
	}
}

type embeddingFetcher struct {
	embedder    ports.Embedder
	concurrency int
	logger      *slog.Logger
	observer    ports.ReconcileObserver
}

// imagesAvailable is false only when the embedder says up front that no image
// vectors can be produced; then no pair can ever get a similarity.
func (f embeddingFetcher) imagesAvailable() bool {
	if f.embedder == nil {
		return false
	}
	if capability, ok := f.embedder.(ports.ImageCapability); ok {
		return capability.ImageEmbeddingAvailable()
	}
	return true
}

func (f embeddingFetcher) fetchText(ctx context.Context, prompts []string, cache *embeddingCache) {
	if f.embedder == nil {
		return
	}
	f.fetchInto(ctx, embeddingKindText, prompts, cache.text, f.embedder.EmbedText)
}

func (f embeddingFetcher) fetchImages(ctx context.Context, urls []string, cache *embeddingCache) {
	if f.embedder == nil {
		return
	}
	f.fetchInto(ctx, embeddingKindImage, urls, cache.image, f.embedder.EmbedImage)
}

// fetchInto resolves every key not yet cached through a bounded pool. Workers
// swallow their own errors so one failed call never cancels its siblings.
func (f embeddingFetcher) fetchInto(
	ctx context.Context,
	kind string,
	keys []string,
	dst map[string][]float32,
	call func(context.Context, string) ([]float32, error),
) {
	pending := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := dst[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, key)
	}
	if len(pending) == 0 {
		return
	}

	limit := f.concurrency
	if limit <= 0 {
		limit = defaultEmbedConcurrency
	}

	vectors := make([][]float32, len(pending))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, key := range pending {
		g.Go(func() error {
			vec, err := call(ctx, key)
			if f.observer != nil {
				f.observer.ObserveEmbedding(kind, err)
			}
			if err != nil {
				f.logger.Warn("embedding_failed", "kind", kind, "key", key, "error", err)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	for i, key := range pending {
		if len(vectors[i]) > 0 {
			dst[key] = vectors[i]
		}
	}
}
