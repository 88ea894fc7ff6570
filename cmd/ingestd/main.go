package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"

	"github.com/loghorn/loghorn/internal/adapter/api"
	"github.com/loghorn/loghorn/internal/adapter/api/handler"
	"github.com/loghorn/loghorn/internal/adapter/metrics"
	"github.com/loghorn/loghorn/internal/adapter/otlp"
	chrepo "github.com/loghorn/loghorn/internal/adapter/repository/clickhouse"
	redisrepo "github.com/loghorn/loghorn/internal/adapter/repository/redis"
	"github.com/loghorn/loghorn/internal/domain"
	"github.com/loghorn/loghorn/internal/pkg/config"
	"github.com/loghorn/loghorn/internal/pkg/logger"
	"github.com/loghorn/loghorn/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.NewPipelineMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Storage Connection ---
	conn, err := chrepo.Connect(ctx, chrepo.Options{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		UseTLS:   cfg.ClickHouseTLS,
	})
	if err != nil {
		log.Error("failed to connect to clickhouse", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	store := chrepo.NewLogRepository(conn, log)
	if err := store.Migrate(ctx); err != nil {
		log.Error("failed to migrate log schema", "error", err)
		os.Exit(1)
	}

	// --- Live Tail (optional) ---
	var tailRepo *redisrepo.TailRepository
	var tailSub handler.TailSubscriber
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("could not connect to redis, live tail disabled", "error", err)
		} else {
			tailRepo = redisrepo.NewTailRepository(redisClient, log)
			tailSub = tailRepo
		}
		defer redisClient.Close()
	}

	// --- Pipeline Core ---
	agg := usecase.NewAggregator(store, m, log, cfg.BatchMaxSize, cfg.SinkWriteTimeout)
	scheduler := usecase.NewFlushScheduler(agg, cfg.FlushInterval, cfg.BatchMaxAge, log)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(schedCtx)
	}()

	ingestUC := usecase.NewIngestUseCase(agg, tailPublisherOrNil(tailRepo), m, log)

	// --- Ingestion Server (OTLP gRPC) ---
	decoder := otlp.NewDecoder(otlp.NewIDGenerator())
	exportServer := otlp.NewServer(decoder, ingestUC, m, log)

	grpcServer := grpc.NewServer()
	collogspb.RegisterLogsServiceServer(grpcServer, exportServer)

	lis, err := net.Listen("tcp", cfg.IngestGRPCAddr)
	if err != nil {
		log.Error("failed to listen for grpc", "error", err, "addr", cfg.IngestGRPCAddr)
		os.Exit(1)
	}

	go func() {
		log.Info("starting ingestion server", "addr", cfg.IngestGRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("ingestion server failed", "error", err)
			stop()
		}
	}()

	// --- Query Server ---
	queryUC := usecase.NewQueryUseCase(store, m, log)
	queryServer := &http.Server{
		Addr:         cfg.QueryHTTPAddr,
		Handler:      api.NewRouter(queryUC, tailSub, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // tail streams indefinitely
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info("starting query server", "addr", queryServer.Addr)
		if err := queryServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("query server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	// Stop accepting new exports first, then drain the aggregator.
	grpcServer.GracefulStop()

	if err := queryServer.Shutdown(shutdownCtx); err != nil {
		log.Error("query server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	schedCancel()
	wg.Wait() // scheduler performs its final drain here

	log.Info("shut down gracefully")
}

// tailPublisherOrNil converts a possibly-nil concrete publisher into the
// interface without wrapping a nil pointer in a non-nil interface.
func tailPublisherOrNil(t *redisrepo.TailRepository) domain.TailPublisher {
	if t == nil {
		return nil
	}
	return t
}
