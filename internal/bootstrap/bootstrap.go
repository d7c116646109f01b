package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/lot-photo-reconciler/internal/config"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/usecase"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/embedding"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/embedding/clip"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/queue/nats"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/resilience"
	"github.com/kirillkom/lot-photo-reconciler/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Scans       ports.ScanReader
	SubmitUC    ports.ScanSubmitter
	ReconcileUC ports.Reconciler
	ProcessUC   ports.ScanProcessor

	closeFn func()
}

// New wires the full stack. observer may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.ReconcileObserver) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.LoadTuning(cfg, cfg.TuningFile)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewScanRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		HandlerTimeout:     cfg.NATSHandlerTimeout,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := newEmbedder(cfg, executor, logger)

	reconcileUC := usecase.NewReconcileUseCase(embedder, usecase.ReconcileConfig{
		Assigner: usecase.AssignerConfig{
			MinScore:          cfg.AssignMinScore,
			EmbedConcurrency:  cfg.EmbedConcurrency,
			MaxImagesPerGroup: cfg.MaxImagesPerGroup,
		},
		Orphans: usecase.OrphanConfig{
			MinScore:          cfg.OrphanMinScore,
			MaxImagesPerGroup: cfg.MaxImagesPerGroup,
		},
		Debug: cfg.ReconcileDebug,
	}, logger, observer)
	submitUC := usecase.NewSubmitScanUseCase(repo, storage, queue)
	processUC := usecase.NewProcessScanUseCase(repo, storage, reconcileUC)

	return &App{
		Config: cfg,

		Queue:       queue,
		Scans:       repo,
		SubmitUC:    submitUC,
		ReconcileUC: reconcileUC,
		ProcessUC:   processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newEmbedder(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) *embedding.Embedder {
	text, image := embeddingProviders(cfg, executor)
	if image == nil {
		logger.Warn("image_embedder_disabled", "reason", "IMAGE_EMBED_URL is empty")
	}
	if text == nil {
		logger.Warn("text_embedder_disabled", "provider", cfg.TextEmbedProvider)
	}
	return embedding.New(text, image)
}

// embeddingProviders picks providers whose vectors share one space. The
// default text side is the image service's own text tower; Ollama is only
// used when explicitly selected, for image models trained against an Ollama
// text model (nomic-embed-vision with nomic-embed-text, for example).
func embeddingProviders(cfg config.Config, executor *resilience.Executor) (embedding.TextEmbedder, embedding.ImageEmbedder) {
	var (
		text  embedding.TextEmbedder
		image embedding.ImageEmbedder
		tower *clip.Client
	)
	if cfg.ImageEmbedURL != "" {
		tower = clip.New(clip.Config{
			BaseURL:   cfg.ImageEmbedURL,
			Model:     cfg.ImageEmbedModel,
			Timeout:   cfg.EmbedTimeout,
			RateLimit: cfg.EmbedRateLimit,
			Burst:     cfg.EmbedBurst,
		}, executor)
		image = tower
	}

	switch strings.ToLower(strings.TrimSpace(cfg.TextEmbedProvider)) {
	case config.TextEmbedProviderOllama:
		text = ollama.New(ollama.Config{
			BaseURL:   cfg.OllamaURL,
			Model:     cfg.OllamaEmbedModel,
			Timeout:   cfg.EmbedTimeout,
			RateLimit: cfg.EmbedRateLimit,
			Burst:     cfg.EmbedBurst,
		}, executor)
	default:
		if tower != nil {
			text = tower
		}
	}
	return text, image
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	out.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return out
}
