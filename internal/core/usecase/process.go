package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
)

type ProcessScanUseCase struct {
	repo       ports.ScanRepository
	storage    ports.ObjectStorage
	reconciler ports.Reconciler
}

func NewProcessScanUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	reconciler ports.Reconciler,
) *ProcessScanUseCase {
	return &ProcessScanUseCase{
		repo:       repo,
		storage:    storage,
		reconciler: reconciler,
	}
}

func (uc *ProcessScanUseCase) ProcessByID(ctx context.Context, scanID string) error {
	if err := uc.markStatus(ctx, scanID, domain.ScanProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, scanID)
	if err != nil {
		if failErr := uc.markFailed(ctx, scanID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResult(ctx, scanID, *result); err != nil {
		err = fmt.Errorf("save scan result: %w", err)
		if failErr := uc.markFailed(ctx, scanID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, scanID, domain.ScanReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessScanUseCase) processPipeline(ctx context.Context, scanID string) (*domain.ScanResult, error) {
	scan, err := uc.repo.GetByID(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("fetch scan by id: %w", err)
	}

	req, err := uc.loadRequest(ctx, scan.StoragePath)
	if err != nil {
		return nil, err
	}

	result, err := uc.reconciler.Reconcile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reconcile scan: %w", err)
	}
	return result, nil
}

func (uc *ProcessScanUseCase) loadRequest(ctx context.Context, storagePath string) (domain.ScanRequest, error) {
	rc, err := uc.storage.Open(ctx, storagePath)
	if err != nil {
		return domain.ScanRequest{}, fmt.Errorf("open scan payload: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, MaxScanPayloadBytes+1))
	if err != nil {
		return domain.ScanRequest{}, fmt.Errorf("read scan payload: %w", err)
	}
	return DecodeScanRequest(raw)
}

func (uc *ProcessScanUseCase) markStatus(ctx context.Context, scanID string, status domain.ScanStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, scanID, status, errMessage)
}

func (uc *ProcessScanUseCase) markFailed(ctx context.Context, scanID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, scanID, domain.ScanFailed, processErr.Error())
}
