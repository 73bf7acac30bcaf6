package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	audithandler "civicpulse/internal/audit/handler"
	enrollmenthandler "civicpulse/internal/enrollment/handler"
	enrollmentmetrics "civicpulse/internal/enrollment/metrics"
	enrollmentservice "civicpulse/internal/enrollment/service"
	enrollmentstore "civicpulse/internal/enrollment/store"
	"civicpulse/internal/enrollment/verifier"
	jwttoken "civicpulse/internal/jwt_token"
	"civicpulse/internal/platform/config"
	"civicpulse/internal/platform/httpserver"
	"civicpulse/internal/platform/logger"
	"civicpulse/internal/platform/metrics"
	"civicpulse/internal/platform/postgres"
	redisclient "civicpulse/internal/platform/redis"
	"civicpulse/internal/platform/tracing"
	ratinghandler "civicpulse/internal/rating/handler"
	ratingmetrics "civicpulse/internal/rating/metrics"
	ratingservice "civicpulse/internal/rating/service"
	"civicpulse/internal/rating/stats"
	ratingstore "civicpulse/internal/rating/store"
	httptransport "civicpulse/internal/transport/http"
	audit "civicpulse/pkg/platform/audit"
	auditpublisher "civicpulse/pkg/platform/audit/publisher"
	kafkaaudit "civicpulse/pkg/platform/audit/store/kafka"
	memoryaudit "civicpulse/pkg/platform/audit/store/memory"
	postgresaudit "civicpulse/pkg/platform/audit/store/postgres"
	"civicpulse/pkg/platform/circuit"
	"civicpulse/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("civicpulse exited with error", "error", err)
		os.Exit(1)
	}
}

// ratingStore is what both the ledger and the aggregator need from storage.
type ratingStore interface {
	ratingservice.Store
	stats.CountSource
}

type storage struct {
	db           *sql.DB
	enrollments  enrollmentservice.Store
	ratings      ratingStore
	enrollmentTx enrollmentservice.EnrollmentTx
	ratingTx     ratingservice.RatingTx
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "civicpulse", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	healthChecks := map[string]httptransport.HealthCheck{}
	if store.db != nil {
		defer store.db.Close()
		healthChecks["postgres"] = store.db.PingContext
	}

	redis, err := redisclient.New(ctx, cfg.RedisURL, redisclient.Options{ReadTimeout: cfg.StorageTimeout})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	statsOpts := []stats.Option{
		stats.WithLogger(log),
		stats.WithTimeout(cfg.StorageTimeout),
	}
	if redis != nil {
		defer redis.Close()
		healthChecks["redis"] = redis.Health
		statsOpts = append(statsOpts, stats.WithCache(stats.NewRedisCache(redis.Client, stats.WithTTL(cfg.StatsCacheTTL))))
		log.Info("rating stats cache enabled", "ttl", cfg.StatsCacheTTL.String())
	}

	auditStore, closeAudit, err := openAuditStore(cfg, store.db, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	if pinger, ok := auditStore.(*kafkaaudit.Store); ok {
		healthChecks["kafka"] = pinger.Ping
	}
	publisher := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(cfg.AuditBufferSize),
		auditpublisher.WithLogger(log),
		auditpublisher.WithDropCounter(httpMetrics.AuditDropped),
	)
	// Runs before closeAudit so buffered events reach the sink.
	defer publisher.Close()

	ratingMetrics := ratingmetrics.New(reg)
	aggregator := stats.New(store.ratings, append(statsOpts, stats.WithMetrics(ratingMetrics))...)
	ratingSvc := ratingservice.New(store.ratings,
		ratingservice.WithTx(store.ratingTx),
		ratingservice.WithStatsInvalidator(aggregator),
		ratingservice.WithLogger(log),
		ratingservice.WithAuditPublisher(publisher),
		ratingservice.WithMetrics(ratingMetrics),
		ratingservice.WithMaxCommentChars(cfg.MaxCommentChars),
		ratingservice.WithStorageTimeout(cfg.StorageTimeout),
	)

	enrollmentOpts := []enrollmentservice.Option{
		enrollmentservice.WithTx(store.enrollmentTx),
		enrollmentservice.WithLogger(log),
		enrollmentservice.WithAuditPublisher(publisher),
		enrollmentservice.WithMetrics(enrollmentmetrics.New(reg)),
		enrollmentservice.WithMaxTemplateBytes(cfg.MaxTemplateBytes),
		enrollmentservice.WithStorageTimeout(cfg.StorageTimeout),
	}
	if cfg.VerifierURL != "" {
		client := &http.Client{Timeout: cfg.VerifierTimeout}
		breaker := circuit.New(circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))
		enrollmentOpts = append(enrollmentOpts, enrollmentservice.WithVerifier(
			verifier.NewHTTPVerifier(cfg.VerifierURL, client, verifier.WithBreaker(breaker)),
		))
	}
	enrollmentSvc := enrollmentservice.New(store.enrollments, enrollmentOpts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        httpMetrics,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:     cfg.AdminToken,
		UITheme:        cfg.UITheme,
		HealthChecks:   healthChecks,
		Enrollment:     enrollmenthandler.New(enrollmentSvc, log, cfg.MaxTemplateBytes),
		Rating:         ratinghandler.New(ratingSvc, aggregator, log, cfg.MaxCommentChars),
		Audit:          audithandler.New(publisher, log),
	})

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting civicpulse", "addr", cfg.Addr, "storage_driver", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return storage{
			enrollments:  enrollmentstore.NewInMemoryStore(),
			ratings:      ratingstore.NewInMemoryStore(),
			enrollmentTx: enrollmentservice.NewShardedTx(tx.NewShardedLocker(cfg.StorageTimeout)),
			ratingTx:     ratingservice.NewShardedTx(tx.NewShardedLocker(cfg.StorageTimeout)),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.DefaultOptions())
	if err != nil {
		return storage{}, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return storage{}, fmt.Errorf("migrate postgres: %w", err)
	}
	userTx := newPostgresUserTx(db, cfg.StorageTimeout)
	return storage{
		db:           db,
		enrollments:  enrollmentstore.NewPostgres(db),
		ratings:      ratingstore.NewPostgres(db),
		enrollmentTx: userTx,
		ratingTx:     userTx,
	}, nil
}

// openAuditStore picks Kafka when brokers are configured, then Postgres when
// the ledger lives there, then memory.
func openAuditStore(cfg *config.Config, db *sql.DB, log *slog.Logger) (audit.Store, func(), error) {
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		s, err := kafkaaudit.New(brokers, cfg.AuditKafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("open kafka audit sink: %w", err)
		}
		log.Info("audit events published to kafka", "topic", cfg.AuditKafkaTopic)
		return s, s.Close, nil
	}
	if db != nil {
		return postgresaudit.New(db), func() {}, nil
	}
	return memoryaudit.NewInMemoryStore(), func() {}, nil
}
