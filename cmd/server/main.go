package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bonifica/internal/audit"
	auditpublisher "bonifica/internal/audit/publisher"
	"bonifica/internal/compliance"
	compliancehandler "bonifica/internal/compliance/handler"
	compliancemetrics "bonifica/internal/compliance/metrics"
	hierarchyhandler "bonifica/internal/hierarchy/handler"
	hierarchysvc "bonifica/internal/hierarchy/service"
	hierarchystore "bonifica/internal/hierarchy/store"
	ledgersvc "bonifica/internal/ledger/service"
	ledgerstore "bonifica/internal/ledger/store"
	"bonifica/internal/platform/config"
	"bonifica/internal/platform/httpserver"
	"bonifica/internal/platform/kafka"
	"bonifica/internal/platform/logger"
	platformpostgres "bonifica/internal/platform/postgres"
	platformredis "bonifica/internal/platform/redis"
	"bonifica/internal/token"
	trainingsvc "bonifica/internal/training/service"
	actionstore "bonifica/internal/training/store/action"
	groupstore "bonifica/internal/training/store/group"
	httpapi "bonifica/internal/transport/http"
	"bonifica/internal/transport/http/cache"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := platformpostgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher audit.Publisher = auditpublisher.Noop{}
	kafkaClient, err := kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		if err := kafka.EnsureTopic(ctx, kafkaClient, cfg.Kafka.Topic); err != nil {
			log.Error("kafka topic creation failed", "error", err)
			os.Exit(1)
		}
		publisher = auditpublisher.New(kafkaClient, cfg.Kafka.Topic, auditpublisher.WithLogger(log))
	}

	var (
		orgs    hierarchysvc.OrganizationStore
		actions trainingsvc.ActionStore
		groups  trainingsvc.GroupStore
		links   ledgersvc.LinkStore
		costs   ledgersvc.CostStore
		entries ledgersvc.EntryStore
	)
	if pool != nil {
		orgs = hierarchystore.NewPostgres(pool)
		actions = actionstore.NewPostgres(pool)
		groups = groupstore.NewPostgres(pool)
		links = ledgerstore.NewPostgresLinks(pool)
		costs = ledgerstore.NewPostgresCosts(pool)
		entries = ledgerstore.NewPostgresEntries(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		orgs = hierarchystore.NewInMemory()
		actions = actionstore.NewInMemory()
		groups = groupstore.NewInMemory()
		links = ledgerstore.NewInMemoryLinks()
		costs = ledgerstore.NewInMemoryCosts()
		entries = ledgerstore.NewInMemoryEntries()
	}

	resolver := hierarchysvc.New(orgs, hierarchysvc.WithLogger(log))
	allocator := trainingsvc.NewAllocator(resolver, actions, groups, trainingsvc.WithLogger(log))
	ledger := ledgersvc.New(links, costs, entries, ledgersvc.WithLogger(log))
	facade := compliance.New(resolver, allocator, ledger, actions, groups,
		compliance.WithLogger(log),
		compliance.WithAuditPublisher(publisher),
		compliance.WithMetrics(compliancemetrics.New()),
	)

	jwtService := token.NewJWTService(cfg.JWTSigningKey, "bonifica", "bonifica-api")
	entityCache := cache.New(redisClient, config.EntityCacheTTL, log)

	router := httpapi.NewRouter(
		hierarchyhandler.New(resolver, log, entityCache),
		compliancehandler.New(facade, log, entityCache),
		jwtService,
		log,
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting bonifica", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
