package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// transientPublishErrors are connection states the client recovers from on
// its own; a scan event published during one of them is worth a retry.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrSlowConsumer,
	nats.ErrNoResponders,
}

// classifyPublishError tells the executor how a failed scan event publish
// should be treated. Caller cancellation is neither retried nor counted
// against the breaker.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isTransientPublishError(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isTransientPublishError(err error) bool {
	for _, target := range transientPublishErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// publishFailure maps a scan event publish error onto the domain kinds. The
// scan row already exists at this point, so a temporary failure lets the
// submitter surface 503 and the client retry the whole submission.
func publishFailure(scanID string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish scan event "+scanID, err)
	}
	return err
}
