package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

type embedderFake struct {
	mu       sync.Mutex
	text     map[string][]float32
	images   map[string][]float32
	textErr  error
	imageErr error

	textCalls  int
	imageCalls int
}

func (f *embedderFake) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	if f.textErr != nil {
		return nil, f.textErr
	}
	return f.text[text], nil
}

func (f *embedderFake) EmbedImage(_ context.Context, imageURL string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	vec, ok := f.images[imageURL]
	if !ok {
		return nil, errors.New("unknown image")
	}
	return vec, nil
}

type observerFake struct {
	mu         sync.Mutex
	embeddings map[string]int
	failures   map[string]int
	mode       domain.ScoringMode
	assigned   int
	orphans    int
	calls      int
}

func newObserverFake() *observerFake {
	return &observerFake{embeddings: map[string]int{}, failures: map[string]int{}}
}

func (o *observerFake) ObserveEmbedding(kind string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.embeddings[kind]++
	if err != nil {
		o.failures[kind]++
	}
}

func (o *observerFake) ObserveReconcile(mode domain.ScoringMode, _ time.Duration, assigned, orphans, _, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.mode = mode
	o.assigned = assigned
	o.orphans = orphans
}

func candidatesFor(urls ...string) []domain.Candidate {
	sources := make([]domain.ImageSource, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, domain.ImageSource{URL: u})
	}
	return domain.NewCandidates(sources)
}
