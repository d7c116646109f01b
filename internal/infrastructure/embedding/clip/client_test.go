package clip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/resilience"
)

func TestEmbedImagePostsURL(t *testing.T) {
	var captured imageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/image" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.5]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Model: "ViT-B-32", RateLimit: 100, Burst: 2}, nil)
	vec, err := client.EmbedImage(context.Background(), "https://cdn.example.com/a.jpg")
	if err != nil {
		t.Fatalf("EmbedImage() error = %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected 2 dims, got %d", len(vec))
	}
	if captured.ImageURL != "https://cdn.example.com/a.jpg" || captured.Model != "ViT-B-32" {
		t.Fatalf("unexpected request: %+v", captured)
	}
}

func TestEmbedImageClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   error
	}{
		{name: "unreachable image", status: http.StatusUnprocessableEntity, kind: domain.ErrEmbeddingUnavailable},
		{name: "overloaded", status: http.StatusTooManyRequests, kind: domain.ErrTemporary},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			executor := resilience.NewExecutor(resilience.Config{
				RetryMaxAttempts:    2,
				RetryInitialBackoff: time.Millisecond,
				RetryMaxBackoff:     time.Millisecond,
			}, nil)
			_, err := New(Config{BaseURL: server.URL}, executor).EmbedImage(context.Background(), "https://cdn.example.com/a.jpg")
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestEmbedImageRejectsEmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}, nil).EmbedImage(context.Background(), "https://cdn.example.com/a.jpg")
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedTextUsesTextTower(t *testing.T) {
	var captured textRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/text" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL + "/", Model: "ViT-B-32"}, nil)
	vec, err := client.EmbedText(context.Background(), "Acme Protein")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
	if captured.Text != "Acme Protein" || captured.Model != "ViT-B-32" {
		t.Fatalf("unexpected request: %+v", captured)
	}

	if _, err := client.EmbedText(context.Background(), "  "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank text, got %v", err)
	}
}
