package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	ledgerservice "sharereg/internal/ledger/service"
	meetingmetrics "sharereg/internal/meeting/metrics"
	meetingservice "sharereg/internal/meeting/service"
	"sharereg/internal/platform/config"
	"sharereg/internal/platform/metrics"
	"sharereg/internal/platform/middleware"
	"sharereg/internal/platform/postgres"
	"sharereg/internal/platform/redis"
	proxyservice "sharereg/internal/proxy/service"
	"sharereg/internal/settings"
	"sharereg/internal/storage/memory"
	pgstore "sharereg/internal/storage/postgres"
	transfermetrics "sharereg/internal/transfer/metrics"
	transferservice "sharereg/internal/transfer/service"
	httptransport "sharereg/internal/transport/http"
	"sharereg/internal/voting/dashboard"
	"sharereg/pkg/platform/audit/publisher"
	"sharereg/pkg/platform/audit/publishers/kafka"
	auditmemory "sharereg/pkg/platform/audit/store/memory"
	auditpostgres "sharereg/pkg/platform/audit/store/postgres"
)

// dataStore is every port the services need. Both the memory and the
// Postgres store satisfy it.
type dataStore interface {
	ledgerservice.Store
	ledgerservice.StoreTx
	proxyservice.Store
	proxyservice.Ledger
	proxyservice.Meetings
	meetingservice.Store
	meetingservice.Ledger
	meetingservice.Proxies
	transferservice.Store
	transferservice.Ledger
	transferservice.Meetings
	settings.Store
}

type app struct {
	handler   http.Handler
	storeKind string
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		store      dataStore
		auditStore publisher.Store
	)
	if cfg.Postgres.URL == "" {
		log.Warn("DATABASE_URL not set; using in-memory store")
		store = memory.New(memory.WithTxTimeout(cfg.Postgres.TxTimeout))
		auditStore = auditmemory.NewInMemoryStore()
		a.storeKind = "memory"
	} else {
		var db *sqlx.DB
		db, err = postgres.Connect(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if cfg.Postgres.AutoMigrate {
			if err = pgstore.Migrate(db.DB); err != nil {
				return nil, err
			}
		}
		store = pgstore.New(db, pgstore.WithTxTimeout(cfg.Postgres.TxTimeout), pgstore.WithLogger(log))
		auditStore = auditpostgres.New(db)
		a.storeKind = "postgres"
	}

	pubOpts := []publisher.Option{publisher.WithLogger(log), publisher.WithAsyncBuffer(1024)}
	if len(cfg.Kafka.Brokers) > 0 {
		var sink *kafka.Sink
		sink, err = kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.AuditTopic}, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		if err = sink.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		pubOpts = append(pubOpts, publisher.WithSink(sink))
	}
	auditPub := publisher.NewPublisher(auditStore, pubOpts...)
	a.closers = append(a.closers, auditPub.Close)

	settingsOpts := []settings.Option{settings.WithLogger(log), settings.WithAuditPublisher(auditPub)}
	var rc *redis.Client
	rc, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		settingsOpts = append(settingsOpts, settings.WithCache(settings.NewRedisCache(rc.Client, cfg.Settings.CacheTTL)))
	}
	settingsSvc, err := settings.New(store, settingsOpts...)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()

	ledgerSvc, err := ledgerservice.New(store, store, settingsSvc,
		ledgerservice.WithLogger(log),
		ledgerservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return nil, err
	}
	proxySvc, err := proxyservice.New(store, store, store, store, settingsSvc,
		proxyservice.WithLogger(log),
		proxyservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return nil, err
	}
	meetingSvc, err := meetingservice.New(store, store, store, store, settingsSvc,
		meetingservice.WithLogger(log),
		meetingservice.WithAuditPublisher(auditPub),
		meetingservice.WithMetrics(meetingmetrics.New(reg)),
	)
	if err != nil {
		return nil, err
	}
	transferSvc, err := transferservice.New(store, store, store, store,
		transferservice.WithLogger(log),
		transferservice.WithAuditPublisher(auditPub),
		transferservice.WithMetrics(transfermetrics.New(reg)),
	)
	if err != nil {
		return nil, err
	}
	dashboardSvc, err := dashboard.New(store, settingsSvc,
		dashboard.WithLogger(log),
		dashboard.WithActivity(auditPub),
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	a.handler = httptransport.NewRouter(httptransport.Deps{
		Ledger:      ledgerSvc,
		Transfers:   transferSvc,
		Meetings:    meetingSvc,
		Proxies:     proxySvc,
		Settings:    settingsSvc,
		Dashboard:   dashboardSvc,
		Verifier:    middleware.NewTokenVerifier(cfg.Server.JWTSigningKey),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Metrics:     metrics.Handler(reg),
		Logger:      log,
	})
	return a, nil
}
