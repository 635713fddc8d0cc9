package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	gormauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/gorm/auditlog"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/httpapi"
	memauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/auditlog"
	memcompanyrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/companyrepo"
	memdocumentrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/documentrepo"
	memidempotency "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/idempotency"
	memobjectstore "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/objectstore"
	memticketrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/ticketrepo"
	memtriprepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/triprepo"
	memuserrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/userrepo"
	postgres "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres"
	pgcompanyrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/companyrepo"
	pgdocumentrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/documentrepo"
	pgidempotency "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/idempotency"
	pgticketrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/ticketrepo"
	pgtriprepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/triprepo"
	pguserrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/userrepo"
	s3objectstore "github.com/omnibus-tickets/omnibus-api/internal/adapters/s3/objectstore"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/app/auth"
	"github.com/omnibus-tickets/omnibus-api/internal/app/companies"
	"github.com/omnibus-tickets/omnibus-api/internal/app/documents"
	"github.com/omnibus-tickets/omnibus-api/internal/app/tickets"
	"github.com/omnibus-tickets/omnibus-api/internal/app/trips"
	"github.com/omnibus-tickets/omnibus-api/internal/app/users"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/password"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
	platformclock "github.com/omnibus-tickets/omnibus-api/internal/platform/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/errreport"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/events"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/logging"
	auditlogport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/auditlog"
	companyrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	documentrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/documentrepo"
	idempotencyport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
	objectstoreport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/objectstore"
	ticketrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	triprepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
	userrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

func main() {
	log, err := logging.New("omnibus-api", os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

type stores struct {
	users     userrepoport.Repository
	companies companyrepoport.Repository
	trips     triprepoport.Repository
	tickets   ticketrepoport.Repository
	documents documentrepoport.Repository
	audit     auditlogport.Store
	idem      idempotencyport.Store
	ready     func(ctx context.Context) error
	cleanup   func()
}

func run(log *zap.Logger) error {
	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	tokenCfg, err := config.LoadTokenConfigFromEnv()
	if err != nil {
		return fmt.Errorf("token config: %w", err)
	}
	storageCfg, err := config.LoadStorageConfigFromEnv()
	if err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	objectCfg, err := config.LoadObjectStoreConfigFromEnv()
	if err != nil {
		return fmt.Errorf("object store config: %w", err)
	}
	eventsCfg, err := config.LoadEventsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("events config: %w", err)
	}
	sentryCfg, err := config.LoadSentryConfigFromEnv()
	if err != nil {
		return fmt.Errorf("sentry config: %w", err)
	}
	if len(tokenCfg.Secret) == 0 {
		if serverCfg.AuthMode != "dev" {
			return errors.New("TOKEN_SECRET is required when AUTH_MODE=jwt")
		}
		// Login answers 500 CONFIGURATION_ERROR until TOKEN_SECRET is set.
		log.Warn("TOKEN_SECRET is not set; credentials cannot be issued")
	}

	hub, err := errreport.NewHub(sentryCfg, "omnibus-api")
	if err != nil {
		return err
	}
	defer hub.Flush(sentryCfg.FlushTimeout)
	if !sentryCfg.Enabled() {
		log.Info("SENTRY_DSN is not set; error reporting disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	st, err := openStores(ctx, storageCfg, log)
	if err != nil {
		return err
	}
	defer st.cleanup()

	objects, err := openObjectStore(objectCfg)
	if err != nil {
		return err
	}

	bus, err := events.NewBus(eventsCfg, log)
	if err != nil {
		return fmt.Errorf("events bus: %w", err)
	}
	defer func() { _ = bus.Close() }()

	// Audit entries travel over the bus and are persisted by the consumer.
	consumers, err := events.NewConsumerRouter(bus, events.Consumers{
		Audit:   st.audit,
		Tickets: events.LogTicketEvents(log),
	}, events.DefaultRetryPolicy, log)
	if err != nil {
		return err
	}
	consumersDone := make(chan error, 1)
	go func() { consumersDone <- consumers.Run(ctx) }()
	select {
	case <-consumers.Running():
	case err := <-consumersDone:
		return fmt.Errorf("event consumers: %w", err)
	}
	go func() {
		if err := <-consumersDone; err != nil {
			log.Error("event consumers stopped", zap.Error(err))
		}
	}()

	auditLog := audit.NewLogger(events.NewAuditPublisher(bus.Publisher), clk, log)
	tok := tokens.NewService(tokenCfg, clk)
	hasher := password.NewHasher(0)

	api := &httpapi.Server{
		Auth:      auth.NewService(st.users, st.companies, tok, hasher, clk, auditLog),
		Users:     users.NewService(st.users, st.companies, st.tickets, hasher, clk, auditLog),
		Companies: companies.NewService(st.companies, st.users, st.trips, clk, auditLog),
		Trips:     trips.NewService(st.trips, st.companies, st.tickets, clk, auditLog),
		Tickets:   tickets.NewService(st.tickets, st.trips, events.NewTicketPublisher(bus.Publisher), clk, auditLog, log),
		Documents: documents.NewService(st.documents, st.users, objects, objectCfg.PresignTTL, clk, auditLog, log),
		Audit:     audit.NewService(st.audit),
		Idem:      st.idem,
		Clock:     clk,
		Log:       log,
	}

	// Auth configuration:
	// - Production: verify HS256 bearer tokens and reload the identity per request
	// - Local dev: set AUTH_MODE=dev to trust X-Debug-Subject / X-Debug-Role
	var authMW func(http.Handler) http.Handler
	switch serverCfg.AuthMode {
	case "dev":
		log.Warn("AUTH_MODE=dev: requests are trusted from X-Debug-Subject headers")
		authMW = httpapi.NewDevAuthMiddleware()
	default:
		authMW = httpapi.NewAuthMiddleware(tok, st.users, log)
	}

	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware:     authMW,
		RateLimiter:        httpapi.NewRateLimiter(serverCfg.RateLimitRPS, serverCfg.RateLimitBurst),
		CORSAllowedOrigins: serverCfg.CORSAllowedOrigins,
		Ready:              st.ready,
		Sentry:             hub,
		Log:                log,
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("port", serverCfg.Port), zap.String("storage", storageCfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (stores, error) {
	if cfg.Backend != "postgres" {
		return stores{
			users:     memuserrepo.NewRepo(),
			companies: memcompanyrepo.NewRepo(),
			trips:     memtriprepo.NewRepo(),
			tickets:   memticketrepo.NewRepo(),
			documents: memdocumentrepo.NewRepo(),
			audit:     memauditlog.NewStore(),
			idem:      memidempotency.NewStore(),
			cleanup:   func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.MaxConns})
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, postgres.MigrateUp, nil); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	auditStore, err := gormauditlog.NewStore(sqlDB, false, log)
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return stores{}, fmt.Errorf("audit store: %w", err)
	}

	return stores{
		users:     pguserrepo.NewRepo(pool),
		companies: pgcompanyrepo.NewRepo(pool),
		trips:     pgtriprepo.NewRepo(pool),
		tickets:   pgticketrepo.NewRepo(pool),
		documents: pgdocumentrepo.NewRepo(pool),
		audit:     auditStore,
		idem:      pgidempotency.NewStore(pool),
		ready:     pingReady(pool),
		cleanup: func() {
			_ = sqlDB.Close()
			pool.Close()
		},
	}, nil
}

func pingReady(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func openObjectStore(cfg config.ObjectStoreConfig) (objectstoreport.Store, error) {
	if cfg.Backend != "s3" {
		return memobjectstore.NewStore(cfg.Bucket), nil
	}
	store, err := s3objectstore.New(s3objectstore.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}
	return store, nil
}
