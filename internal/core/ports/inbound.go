package ports

import (
	"context"
	"io"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// ScanSubmitter is the inbound contract for asynchronous scan submission.
type ScanSubmitter interface {
	Submit(ctx context.Context, body io.Reader) (*domain.Scan, error)
}

// Reconciler runs the full reconciliation pipeline in-process.
type Reconciler interface {
	Reconcile(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error)
}

// ScanReader is the inbound read model for scan state.
type ScanReader interface {
	GetByID(ctx context.Context, id string) (*domain.Scan, error)
}

// ScanProcessor is the inbound contract for asynchronous scan processing.
type ScanProcessor interface {
	ProcessByID(ctx context.Context, scanID string) error
}
