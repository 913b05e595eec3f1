// Package app wires all inkbridge subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the background queue worker loop, and Shutdown
// tears everything down in order.
//
// For testing, inject stores and providers via functional options
// (WithGlossaryStore, WithBookStore, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcveil/inkbridge/internal/bookstore"
	bookstorepg "github.com/arcveil/inkbridge/internal/bookstore/postgres"
	"github.com/arcveil/inkbridge/internal/config"
	"github.com/arcveil/inkbridge/internal/glossary"
	glossarypg "github.com/arcveil/inkbridge/internal/glossary/postgres"
	"github.com/arcveil/inkbridge/internal/observe"
	"github.com/arcveil/inkbridge/internal/orchestrator"
	"github.com/arcveil/inkbridge/internal/queue"
	queuepg "github.com/arcveil/inkbridge/internal/queue/postgres"
	"github.com/arcveil/inkbridge/internal/reconcile"
	"github.com/arcveil/inkbridge/pkg/provider/llm"
	"github.com/arcveil/inkbridge/pkg/provider/llm/anthropic"
	"github.com/arcveil/inkbridge/pkg/provider/llm/gemini"
	"github.com/arcveil/inkbridge/pkg/provider/llm/openai"
)

// queuePollInterval is how often [App.Run]'s background worker checks the
// queue for its next item (§5's "background queue worker").
const queuePollInterval = 3 * time.Second

// App owns all subsystem lifetimes and drives the background translation
// queue worker of §5.
type App struct {
	cfg *config.Config

	pool *pgxpool.Pool

	glossary glossary.Store
	books    bookstore.Store
	queue    queue.Store
	registry *config.Registry
	metrics  *observe.Metrics

	translationProvider llm.Provider
	adviceProvider       llm.Provider
	ratios               *orchestrator.RatioTracker

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGlossaryStore injects a glossary store instead of opening one from
// config.Storage.PostgresDSN.
func WithGlossaryStore(s glossary.Store) Option {
	return func(a *App) { a.glossary = s }
}

// WithBookStore injects a book/chapter store instead of opening one from
// config.Storage.PostgresDSN.
func WithBookStore(s bookstore.Store) Option {
	return func(a *App) { a.books = s }
}

// WithQueueStore injects a queue store instead of opening one from
// config.Storage.PostgresDSN.
func WithQueueStore(s queue.Store) Option {
	return func(a *App) { a.queue = s }
}

// WithRegistry injects a provider registry instead of loading one from
// config.Registry.Path.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics injects a Metrics instance instead of using
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together: the provider
// registry (§6.4), the three Postgres-backed stores of §6.2, the resolved
// translation and advice providers (§6.3), and the learned token-ratio
// tracker (S6). Use Option functions to inject test doubles for any
// subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.registry == nil {
		if err := a.initRegistry(ctx); err != nil {
			return nil, fmt.Errorf("app: init registry: %w", err)
		}
	}

	if a.glossary == nil || a.books == nil || a.queue == nil {
		if err := a.initStores(ctx); err != nil {
			return nil, fmt.Errorf("app: init stores: %w", err)
		}
	}

	translationProvider, err := a.registry.Create(cfg.Models.TranslationModel, cfg.Models.MaxChars, cfg.Models.MaxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("app: create translation provider: %w", err)
	}
	a.translationProvider = translationProvider

	adviceProvider, err := a.registry.Create(cfg.Models.AdviceModel, cfg.Models.MaxChars, cfg.Models.MaxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("app: create advice provider: %w", err)
	}
	a.adviceProvider = adviceProvider

	ratios, err := orchestrator.LoadRatioTracker(cfg.Storage.TokenRatiosPath)
	if err != nil {
		return nil, fmt.Errorf("app: load token ratio history: %w", err)
	}
	a.ratios = ratios

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	return a, nil
}

// initRegistry loads the provider registry document and registers the
// three built-in adapter classes (§6.4).
func (a *App) initRegistry(ctx context.Context) error {
	doc, err := config.LoadRegistryDocument(a.cfg.Registry.Path)
	if err != nil {
		return err
	}
	reg := config.NewRegistry(doc)

	reg.RegisterClass("openai", func(def config.ProviderDefinition, model, apiKey string, maxChars, maxTokens int) (llm.Provider, error) {
		opts := []openai.Option{openai.WithMaxChars(maxChars)}
		if def.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(def.BaseURL))
		}
		if maxTokens > 0 {
			opts = append(opts, openai.WithMaxOutputTokens(maxTokens))
		}
		return openai.New(apiKey, model, opts...)
	})

	reg.RegisterClass("anthropic", func(def config.ProviderDefinition, model, apiKey string, maxChars, maxTokens int) (llm.Provider, error) {
		opts := []anthropic.Option{anthropic.WithMaxChars(maxChars)}
		if def.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(def.BaseURL))
		}
		if maxTokens > 0 {
			opts = append(opts, anthropic.WithMaxOutputTokens(maxTokens))
		}
		return anthropic.New(apiKey, model, opts...)
	})

	reg.RegisterClass("gemini", func(def config.ProviderDefinition, model, apiKey string, maxChars, maxTokens int) (llm.Provider, error) {
		opts := []gemini.Option{gemini.WithMaxChars(maxChars)}
		if maxTokens > 0 {
			opts = append(opts, gemini.WithMaxOutputTokens(maxTokens))
		}
		return gemini.New(ctx, apiKey, model, opts...)
	})

	if err := reg.ResolveAPIKeys(); err != nil {
		return err
	}

	a.registry = reg
	return nil
}

// initStores opens the shared PostgreSQL pool and constructs the three
// stores backing §6.2, running each store's schema migration.
func (a *App) initStores(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, a.cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	if a.glossary == nil {
		gs := glossarypg.New(pool)
		if err := gs.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate glossary store: %w", err)
		}
		a.glossary = gs
	}
	if a.books == nil {
		bs := bookstorepg.New(pool)
		if err := bs.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate book store: %w", err)
		}
		a.books = bs
	}
	if a.queue == nil {
		qs := queuepg.New(pool)
		if err := qs.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate queue store: %w", err)
		}
		a.queue = qs
	}
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// GlossaryStore returns the entity store (C2).
func (a *App) GlossaryStore() glossary.Store { return a.glossary }

// BookStore returns the book/chapter store (C3).
func (a *App) BookStore() bookstore.Store { return a.books }

// QueueStore returns the translation job queue (C4).
func (a *App) QueueStore() queue.Store { return a.queue }

// ─── Translation ─────────────────────────────────────────────────────────────

// TranslateChapter runs the full chunked translation of one chapter (C6),
// resolves Pass A's potential duplicates with the conservative
// [reconcile.ApplyDefault] decision (no interactive reviewer exists in this
// headless path), and persists the merged entities and chapter (C2, C3).
// It implements the per-job unit of work the background queue worker and
// any interactive caller both drive.
func (a *App) TranslateChapter(ctx context.Context, bookID string, chapterNumber int, lines []string, progress orchestrator.ProgressFunc) (*orchestrator.Result, error) {
	start := time.Now()

	template, err := a.books.PromptTemplate(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("app: load prompt template: %w", err)
	}

	class, err := a.registry.ClassFor(a.cfg.Models.TranslationModel)
	if err != nil {
		return nil, fmt.Errorf("app: resolve translation provider class: %w", err)
	}

	deps := orchestrator.Deps{Glossary: a.glossary, Provider: a.translationProvider, Ratios: a.ratios}
	req := orchestrator.Request{
		Lines:            lines,
		BookID:           bookID,
		CurrentChapter:   chapterNumber,
		PromptTemplate:   template,
		IsGeminiProvider: class == "gemini",
		OnProgress:       progress,
	}

	result, err := orchestrator.Translate(ctx, deps, req)
	if err != nil {
		a.metrics.RecordProviderError(ctx, class, "translate")
		return nil, err
	}
	a.metrics.RecordProviderRequest(ctx, class, "ok")

	if len(result.PotentialDuplicates) > 0 {
		for range result.PotentialDuplicates {
			a.metrics.RecordPotentialDuplicate(ctx, "merge")
		}
		if err := reconcile.ApplyDefault(ctx, a.glossary, &result.Merged, result.PotentialDuplicates, bookID); err != nil {
			return nil, fmt.Errorf("app: resolve potential duplicates: %w", err)
		}
	}

	if _, err := orchestrator.PersistEntities(ctx, a.glossary, bookID, result); err != nil {
		return nil, fmt.Errorf("app: persist entities: %w", err)
	}
	for cat, entries := range result.NewEntities {
		for range entries {
			a.metrics.RecordEntityDiscovered(ctx, string(cat))
		}
	}

	if _, err := orchestrator.PersistChapter(ctx, a.books, bookID, chapterNumber, lines, result, a.cfg.Models.TranslationModel); err != nil {
		return nil, fmt.Errorf("app: persist chapter: %w", err)
	}

	a.metrics.ChapterDuration.Record(ctx, time.Since(start).Seconds())
	a.metrics.RecordChapterTranslated(ctx, bookID)

	return result, nil
}

// RequestAdvice asks the advice model for alternative translations for one
// entity (§4.7 supplemental), using the configured advice provider.
func (a *App) RequestAdvice(ctx context.Context, node reconcile.AdviceNode) (reconcile.AdviceResponse, error) {
	return reconcile.RequestAdvice(ctx, a.adviceProvider, a.cfg.Models.AdviceModel, node)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the background queue worker (§5) and blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Go(func() {
		a.runQueueWorker(ctx)
	})

	slog.Info("app running")
	<-ctx.Done()

	wg.Wait()
	return ctx.Err()
}

// runQueueWorker implements §5's single loop: dequeue, translate, and on
// success remove the item from the queue; on failure the item is left in
// place and the worker stops, so the item is not attempted again until the
// worker is started again. The loop polls at queuePollInterval.
func (a *App) runQueueWorker(ctx context.Context) {
	ticker := time.NewTicker(queuePollInterval)
	defer ticker.Stop()

	if !a.processNextQueueItem(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.processNextQueueItem(ctx) {
				return
			}
		}
	}
}

// processNextQueueItem drains at most one item per call so runQueueWorker's
// select loop stays responsive to cancellation between jobs. It returns
// false only when translating the dequeued item failed.
func (a *App) processNextQueueItem(ctx context.Context) bool {
	item, err := a.queue.Dequeue(ctx, "")
	if err != nil {
		if !errors.Is(err, queue.ErrEmpty) {
			slog.Warn("queue worker: dequeue failed", "err", err)
		}
		return true
	}

	logger := observe.Logger(ctx)
	logger.Info("queue worker: translating", "book_id", item.BookID, "chapter", item.ChapterNumber)

	if _, err := a.TranslateChapter(ctx, item.BookID, item.ChapterNumber, item.Content, nil); err != nil {
		a.metrics.QueueWorkerFailures.Add(ctx, 1)
		logger.Warn("queue worker: translation failed, leaving item queued",
			"book_id", item.BookID, "chapter", item.ChapterNumber, "err", err)
		return false
	}

	if _, err := a.queue.Remove(ctx, item.ID); err != nil {
		logger.Warn("queue worker: failed to remove completed item", "id", item.ID, "err", err)
	}
	return true
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
