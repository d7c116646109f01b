package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

type submitRepoFake struct {
	created *domain.Scan
	err     error
}

func (f *submitRepoFake) Create(_ context.Context, scan *domain.Scan) error {
	if f.err != nil {
		return f.err
	}
	copyScan := *scan
	f.created = &copyScan
	return nil
}

func (f *submitRepoFake) GetByID(context.Context, string) (*domain.Scan, error) {
	return nil, errors.New("not implemented")
}
func (f *submitRepoFake) UpdateStatus(context.Context, string, domain.ScanStatus, string) error {
	return errors.New("not implemented")
}
func (f *submitRepoFake) SaveResult(context.Context, string, domain.ScanResult) error {
	return errors.New("not implemented")
}

type storageFake struct {
	savedKey  string
	savedBody string
	openBody  string
	err       error
	openErr   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.openBody)), nil
}

type queueFake struct {
	scanID string
	err    error
}

func (f *queueFake) PublishScanSubmitted(_ context.Context, scanID string) error {
	if f.err != nil {
		return f.err
	}
	f.scanID = scanID
	return nil
}

func (f *queueFake) SubscribeScanSubmitted(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

const validScanPayload = `{
	"groups": [{"groupId": "g1", "brand": "Acme", "images": ["https://cdn.example.com/a.jpg"]}],
	"images": [{"url": "https://cdn.example.com/a.jpg"}, {"url": "https://cdn.example.com/b.jpg"}],
	"imageInsights": {"https://cdn.example.com/a.jpg": {"role": "front", "roleScore": 0.8}}
}`

func TestSubmitScanSuccess(t *testing.T) {
	repo := &submitRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewSubmitScanUseCase(repo, storage, queue)

	scan, err := uc.Submit(context.Background(), bytes.NewBufferString(validScanPayload))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if scan.ID == "" {
		t.Fatalf("expected scan id")
	}
	if scan.Status != domain.ScanQueued {
		t.Fatalf("expected status queued, got %s", scan.Status)
	}
	if scan.GroupCount != 1 || scan.ImageCount != 2 {
		t.Fatalf("unexpected counts: groups=%d images=%d", scan.GroupCount, scan.ImageCount)
	}
	if repo.created == nil {
		t.Fatalf("expected repo.Create call")
	}
	if queue.scanID != scan.ID {
		t.Fatalf("expected queued scan id %s, got %s", scan.ID, queue.scanID)
	}
	if storage.savedKey != scan.ID+".json" {
		t.Fatalf("unexpected storage key %s", storage.savedKey)
	}
	if storage.savedBody != validScanPayload {
		t.Fatalf("expected payload stored verbatim")
	}
}

func TestSubmitScanRejectsInvalidPayload(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{"groups": [`,
		"missing id":     `{"groups": [{"brand": "Acme"}]}`,
		"duplicate id":   `{"groups": [{"groupId": "g1"}, {"groupId": "g1"}]}`,
		"negative score": `{"groups": [{"groupId": "g1"}], "options": {"minScore": -1}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			storage := &storageFake{}
			uc := NewSubmitScanUseCase(&submitRepoFake{}, storage, &queueFake{})
			_, err := uc.Submit(context.Background(), strings.NewReader(payload))
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if storage.savedKey != "" {
				t.Fatalf("invalid payload must not be stored")
			}
		})
	}
}

func TestDecodeScanRequestToleratesLooseInsights(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantGroups   int
		wantInsights int
	}{
		{
			name:         "empty groups",
			payload:      `{"groups": [], "images": [{"url": "https://cdn.example.com/a.jpg"}]}`,
			wantGroups:   0,
			wantInsights: 0,
		},
		{
			name:         "scalar insights",
			payload:      `{"groups": [{"groupId": "g1"}], "imageInsights": 42}`,
			wantGroups:   1,
			wantInsights: 0,
		},
		{
			name:         "string insights",
			payload:      `{"groups": [{"groupId": "g1"}], "imageInsights": "n/a"}`,
			wantGroups:   1,
			wantInsights: 0,
		},
		{
			name:         "string role score",
			payload:      `{"groups": [{"groupId": "g1"}], "imageInsights": [{"url": "a.jpg", "roleScore": "0.8"}]}`,
			wantGroups:   1,
			wantInsights: 1,
		},
		{
			name:         "one bad entry among good ones",
			payload:      `{"groups": [{"groupId": "g1"}], "imageInsights": [{"url": "a.jpg"}, "oops", {"url": "b.jpg", "hasVisibleText": "true"}]}`,
			wantGroups:   1,
			wantInsights: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeScanRequest([]byte(tt.payload))
			if err != nil {
				t.Fatalf("DecodeScanRequest() error = %v", err)
			}
			if len(req.Groups) != tt.wantGroups || len(req.ImageInsights) != tt.wantInsights {
				t.Fatalf("got groups=%d insights=%d", len(req.Groups), len(req.ImageInsights))
			}
		})
	}

	req, err := DecodeScanRequest([]byte(`{"groups": [{"groupId": "g1"}], "imageInsights": [{"url": "a.jpg", "roleScore": "0.8", "hasVisibleText": "true"}]}`))
	if err != nil {
		t.Fatalf("DecodeScanRequest() error = %v", err)
	}
	if got := req.ImageInsights[0]; got.RoleScore != 0.8 || !got.HasVisibleText {
		t.Fatalf("expected loose scalars decoded, got %+v", got)
	}
}

func TestSubmitScanQueueError(t *testing.T) {
	uc := NewSubmitScanUseCase(&submitRepoFake{}, &storageFake{}, &queueFake{err: errors.New("queue down")})

	_, err := uc.Submit(context.Background(), strings.NewReader(validScanPayload))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish scan event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}
