package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/api"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/crawler"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/enrich"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/extractor"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/filter"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/llm"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/pipeline"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/store"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/health"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/kafka"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/logger"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/metrics"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/middleware"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/postgres"
	pkgredis "github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/redis"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/resilience"
)

const recorderBuffer = 1024

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting job search service", "port", cfg.Server.Port)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metrics.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metricsMux); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var enrichCache enrich.Cache
	var resultKV pipeline.KV
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		enrichCache = redisClient
		resultKV = redisClient
		slog.Info("result and enrichment caches enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Search.ResultCacheTTL)
	}

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	var graph enrich.GraphStore
	var neo *enrich.Neo4jGraph
	neo, err = enrich.NewNeo4jGraph(cfg.Graph)
	if err != nil {
		slog.Warn("knowledge graph unavailable, query expansion disabled", "error", err)
		neo = nil
	} else {
		defer neo.Close(context.Background())
		graph = neo
		slog.Info("knowledge graph connected", "uri", cfg.Graph.URI)
	}

	var completer llm.Completer
	var llmClient *llm.Client
	llmClient, err = llm.NewClient(cfg.LLM, m)
	if err != nil {
		slog.Warn("llm unavailable, using deterministic fallbacks", "error", err)
		llmClient = nil
		completer = llm.Unavailable{}
	} else {
		completer = llmClient
		slog.Info("llm client ready", "model", cfg.LLM.Model)
	}

	crawlers := []crawler.Crawler{
		crawler.NewLinkedIn(cfg.Crawler.LinkedIn, cfg.Crawler.RequestTimeout),
		crawler.NewIndeed(cfg.Crawler.Indeed, cfg.Crawler.RequestTimeout),
		crawler.NewCareerPage(cfg.Crawler.CareerPages, cfg.Crawler.RequestTimeout),
	}
	orchestrator := crawler.NewOrchestrator(crawlers, crawler.OrchestratorOptions{
		DetailLimit: cfg.Crawler.DetailLimit,
		BatchSize:   cfg.Crawler.BatchSize,
		BatchPause:  cfg.Crawler.BatchPause,
	}, m)

	enricher := enrich.NewEnricher(enrich.NewParser(completer), graph, enrichCache, cfg.Search.EnrichmentCacheTTL)
	ex := extractor.New(completer, m)
	machine := filter.NewMachine(m)
	resultCache := pipeline.NewResultCache(resultKV, cfg.Search.ResultCacheTTL)
	notifier := pipeline.NewNotifier(cfg.Search.NotifierBuffer)
	profiles := store.NewProfileStore(pg)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchCompleted)
	defer producer.Close()
	recorder := store.NewRecorder(producer, recorderBuffer)
	recorder.Start(ctx)
	defer recorder.Close()
	slog.Info("search recorder started", "topic", cfg.Kafka.Topics.SearchCompleted)

	persister := store.NewPersister(pg)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchCompleted, persister.Handle)
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("search-completed consumer stopped", "error", err)
		}
	}()

	pipe := pipeline.New(enricher, orchestrator, ex, machine, resultCache, notifier, profiles, recorder, m, pipeline.Options{
		MaxPerSource: cfg.Search.MaxPerSource,
	})

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("knowledge_graph", func(ctx context.Context) health.ComponentHealth {
		if neo == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := neo.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("llm", func(ctx context.Context) health.ComponentHealth {
		if llmClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if llmClient.BreakerState() == resilience.StateOpen {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit breaker open"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := api.NewHandler(pipe, profiles)
	mux := http.NewServeMux()
	// The event stream stays open until the client disconnects, so only the
	// search route sits behind the request timeout.
	mux.Handle("POST /api/v1/search/jobs", middleware.Timeout(cfg.Server.WriteTimeout)(h.Search()))
	mux.Handle("GET /api/v1/search/events", h.Events())
	mux.HandleFunc("GET /api/v1/profile", h.GetProfile)
	mux.HandleFunc("PUT /api/v1/profile", h.PutProfile)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero; it would sever open event streams.
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("job search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("job search service stopped")
}
