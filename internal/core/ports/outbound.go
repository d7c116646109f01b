package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// ScanRepository persists and reads scan job state.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.Scan) error
	GetByID(ctx context.Context, id string) (*domain.Scan, error)
	UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result domain.ScanResult) error
}

// ObjectStorage stores submitted scan payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes scan submission events.
type MessageQueue interface {
	PublishScanSubmitted(ctx context.Context, scanID string) error
	SubscribeScanSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// Embedder produces vectors for group prompts and candidate images. A nil
// vector with a nil error means the provider had nothing for the input.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, imageURL string) ([]float32, error)
}

// ReconcileObserver receives per-scan engine statistics.
type ReconcileObserver interface {
	ObserveEmbedding(kind string, err error)
	ObserveReconcile(mode domain.ScoringMode, duration time.Duration, assigned, orphans, corrections, reassignments int)
}

// ImageCapability is optionally implemented by an Embedder that can tell
// ahead of time whether image vectors are obtainable at all.
type ImageCapability interface {
	ImageEmbeddingAvailable() bool
}
