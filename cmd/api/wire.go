package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bryanwahyu/judgeproxy/internal/application"
	"github.com/bryanwahyu/judgeproxy/internal/application/adapters"
	"github.com/bryanwahyu/judgeproxy/internal/application/dispatch"
	appjudges "github.com/bryanwahyu/judgeproxy/internal/application/judges"
	appwebhooks "github.com/bryanwahyu/judgeproxy/internal/application/webhooks"
	"github.com/bryanwahyu/judgeproxy/internal/config"
	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/infra/ai/dify"
	"github.com/bryanwahyu/judgeproxy/internal/infra/ai/openai"
	"github.com/bryanwahyu/judgeproxy/internal/infra/ai/prompt"
	"github.com/bryanwahyu/judgeproxy/internal/infra/db"
	"github.com/bryanwahyu/judgeproxy/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/judgeproxy/internal/infra/storage"
	"github.com/bryanwahyu/judgeproxy/internal/infra/store/memory"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
	"github.com/bryanwahyu/judgeproxy/internal/middleware"
)

// app is the wired process: everything built once at startup and passed
// down explicitly.
type app struct {
	Handler  http.Handler
	Adapters *adapters.Set
	Limiter  *middleware.RateLimiter

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, log logging.Logger) (*app, error) {
	a := &app{}

	registry, err := appjudges.NewRegistry(cfg.JudgeList())
	if err != nil {
		return nil, fmt.Errorf("judge registry: %w", err)
	}
	for _, j := range registry.List() {
		if j.Credential == "" {
			log.Warn(ctx, "judge has no credential", logging.String("judge", string(j.ID)))
		}
	}

	metrics := middleware.NewMetrics()
	checkers := map[string]middleware.HealthChecker{}

	// connect persistence (optional)
	var comments analysis.CommentRepository
	if cfg.Persistence.Driver != "" {
		store, err := db.Open(ctx, cfg.Persistence.Driver, cfg.PersistenceDSN(), cfg.Persistence.Migrate)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		comments = store.Comments
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: store.DB}
		log.Info(ctx, "persistence enabled", logging.String("driver", cfg.Persistence.Driver))
	}

	// init minio (optional)
	var archive analysis.Archive
	if cfg.Minio.Enabled {
		s, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("minio init error: %w", err)
		}
		archive = s
		checkers["minio"] = middleware.CheckFunc(s.Check)
	}

	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}
	dispatcher := &dispatch.Service{
		Judges: registry,
		Backends: map[judges.Kind]ai.Backend{
			judges.KindDify:   dify.NewClient(cfg.Upstream.BaseURL, httpClient),
			judges.KindOpenAI: openai.NewClient(cfg.Upstream.OpenAIBaseURL, httpClient),
		},
		Markers: cfg.Upstream.ConfigErrorMarkers,
		Persona: prompt.Persona,
		Clock:   application.SystemClock{},
		Log:     log.Named("dispatch"),
		Metrics: metrics,
	}

	adapterLog := log.Named("adapter")
	a.Adapters = adapters.NewSet(registry.List(), func(j judges.Judge) *adapters.Adapter {
		results := memory.NewResultStore()
		metrics.TrackStoreSize("results_"+string(j.ID), results.Len)
		return &adapters.Adapter{
			Judge:       j,
			Dispatcher:  dispatcher,
			Store:       results,
			Comments:    comments,
			Archive:     archive,
			Instruction: prompt.Query,
			Clock:       application.SystemClock{},
			Log:         adapterLog,
		}
	})

	events := memory.NewEventStore()
	metrics.TrackStoreSize("webhook_events", events.Len)

	if cfg.Server.RateLimit.Capacity > 0 {
		a.Limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	}

	a.Handler = httpserver.NewRouter(httpserver.Deps{
		Adapters:   a.Adapters,
		Judges:     registry,
		Dispatcher: dispatcher,
		Webhooks: &appwebhooks.Service{
			Store:  events,
			Secret: cfg.Upstream.WebhookSecret,
			Clock:  application.SystemClock{},
			Log:    log.Named("webhook"),
		},
		Comments:    comments,
		Metrics:     metrics,
		Limiter:     a.Limiter,
		APIKeys:     cfg.Server.APIKeys,
		CORSOrigins: cfg.Server.CORSOrigins,
		Checkers:    checkers,
		PublicURL:   cfg.Server.PublicURL,
		WebhookURL:  cfg.Upstream.WebhookURL,
		Log:         log.Named("http"),
	})
	return a, nil
}
