package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attesta/internal/audit"
	auditkafka "attesta/internal/audit/kafka"
	"attesta/internal/credential"
	"attesta/internal/issuer"
	jwttoken "attesta/internal/jwt_token"
	"attesta/internal/lifecycle"
	"attesta/internal/platform/config"
	"attesta/internal/platform/httpserver"
	"attesta/internal/platform/logger"
	"attesta/internal/platform/postgres"
	platformredis "attesta/internal/platform/redis"
	"attesta/internal/registry"
	registrymetrics "attesta/internal/registry/metrics"
	"attesta/internal/roles"
	"attesta/internal/storage"
	httptransport "attesta/internal/transport/http"
	"attesta/internal/verifier"
	"attesta/internal/verifier/cache"
	verifiermetrics "attesta/internal/verifier/metrics"
	id "attesta/pkg/domain"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages. Empty Postgres, Redis, or
// Kafka settings select the in-memory or no-op variant of each concern, so a
// bare `go run ./cmd/server` works for local development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		credStore   credential.Store
		roleStore   roles.Store
		issuerStore issuer.Store
		auditStore  audit.Store
	)

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := storage.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		credStore = credential.NewPostgresStore(db)
		roleStore = roles.NewPostgresStore(db)
		issuerStore = issuer.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		credStore = credential.NewInMemoryStore()
		roleStore = roles.NewInMemoryStore()
		issuerStore = issuer.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	inbox := make(chan audit.Event, cfg.AuditBuffer)
	publisher := audit.NewPublisher(inbox, audit.WithPublisherLogger(log))

	workerOpts := []audit.WorkerOption{audit.WithWorkerLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := auditkafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.AuditTopic, auditkafka.WithLogger(log))
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		workerOpts = append(workerOpts, audit.WithSink(producer))
		log.Info("audit events mirrored to kafka", "topic", cfg.AuditTopic)
	}
	worker := audit.NewWorker(auditStore, inbox, workerOpts...)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	roleService := roles.NewService(roleStore, roles.WithLogger(log))
	if cfg.BootstrapIdentity != "" {
		deployer, err := id.ParseIdentity(cfg.BootstrapIdentity)
		if err != nil {
			log.Error("invalid bootstrap identity", "error", err)
			os.Exit(1)
		}
		if err := roleService.Bootstrap(ctx, deployer); err != nil {
			log.Error("bootstrap grants failed", "error", err)
			os.Exit(1)
		}
		log.Info("bootstrap identity granted all capabilities", "identity", deployer)
	}

	issuerService := issuer.NewService(issuerStore, roleService, issuer.WithLogger(log))
	pause := lifecycle.NewController(roleService, lifecycle.WithLogger(log))

	registryOpts := []registry.Option{
		registry.WithLogger(log),
		registry.WithMetrics(registrymetrics.New()),
		registry.WithAudit(publisher),
	}
	verifierOpts := []verifier.Option{
		verifier.WithLogger(log),
		verifier.WithMetrics(verifiermetrics.New()),
		verifier.WithMaxBatchSize(cfg.MaxVerifyBatch),
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		verifyCache := cache.New(redisClient, cfg.VerifyCacheTTL)
		verifierOpts = append(verifierOpts, verifier.WithCache(verifyCache))
		registryOpts = append(registryOpts, registry.WithInvalidator(verifyCache))
		log.Info("verification results cached in redis", "ttl", cfg.VerifyCacheTTL)
	}

	registryService := registry.NewService(credStore, roleService, issuerService, pause, registryOpts...)
	verifierService := verifier.NewService(credStore, issuerService, verifierOpts...)

	tokens := jwttoken.NewManager(cfg.JWTSigningKey, 24*time.Hour)
	handler := httptransport.NewHandler(registryService, verifierService, roleService, issuerService, pause, auditStore, publisher)
	router := httptransport.NewRouter(handler, tokens)

	srv := httpserver.New(cfg.Addr, router, cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout)

	go func() {
		log.Info("starting attesta registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// The worker drains remaining audit events once ctx is cancelled.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("audit worker did not finish draining in time")
	}
}
