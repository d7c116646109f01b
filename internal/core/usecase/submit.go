package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
)

// MaxScanPayloadBytes bounds one submitted scan request.
const MaxScanPayloadBytes = 32 << 20

type SubmitScanUseCase struct {
	repo    ports.ScanRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitScanUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitScanUseCase {
	return &SubmitScanUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Submit validates a scan request, stores it verbatim and queues it for the
// worker.
func (uc *SubmitScanUseCase) Submit(ctx context.Context, body io.Reader) (*domain.Scan, error) {
	raw, err := io.ReadAll(io.LimitReader(body, MaxScanPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read scan payload: %w", err)
	}
	if len(raw) > MaxScanPayloadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read scan payload", errors.New("payload too large"))
	}

	req, err := DecodeScanRequest(raw)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := id + ".json"
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	scan := &domain.Scan{
		ID:          id,
		Status:      domain.ScanQueued,
		ImageCount:  len(req.Images),
		GroupCount:  len(req.Groups),
		StoragePath: storageKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, scan); err != nil {
		return nil, fmt.Errorf("create scan metadata: %w", err)
	}

	if err := uc.queue.PublishScanSubmitted(ctx, scan.ID); err != nil {
		return nil, fmt.Errorf("publish scan event: %w", err)
	}

	return scan, nil
}

// DecodeScanRequest parses and validates a scan payload. Every failure is
// reported as domain.ErrInvalidInput.
func DecodeScanRequest(raw []byte) (domain.ScanRequest, error) {
	var req domain.ScanRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.ScanRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode scan request", err)
	}
	if err := validateScanRequest(req); err != nil {
		return domain.ScanRequest{}, domain.WrapError(domain.ErrInvalidInput, "validate scan request", err)
	}
	return req, nil
}

func validateScanRequest(req domain.ScanRequest) error {
	seen := make(map[string]struct{}, len(req.Groups))
	for i, g := range req.Groups {
		if g.GroupID == "" {
			return fmt.Errorf("groups[%d].groupId is required", i)
		}
		if _, dup := seen[g.GroupID]; dup {
			return fmt.Errorf("duplicate groupId %q", g.GroupID)
		}
		seen[g.GroupID] = struct{}{}
	}
	if req.Options.MinScore < 0 || req.Options.OrphanMinScore < 0 {
		return errors.New("score thresholds must not be negative")
	}
	return nil
}
