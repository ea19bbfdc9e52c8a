package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/platform/config"
	"docverify/internal/platform/redis"
	vmetrics "docverify/internal/verification/metrics"
	"docverify/internal/verification/policy/cache"
	"docverify/internal/verification/policy/publish"
	"docverify/internal/verification/policy/store"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/outbox"
	"docverify/pkg/platform/audit/publisher"
	"docverify/pkg/platform/audit/publishers/compliance"
	kafkastore "docverify/pkg/platform/audit/store/kafka"
	memorystore "docverify/pkg/platform/audit/store/memory"
	pgaudit "docverify/pkg/platform/audit/store/postgres"
)

// infra holds the optional shared connections.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		in.db = db
		log.Info("postgres enabled")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		log.Info("redis enabled")
	}

	if cfg.Kafka.Enabled() {
		client, err := kafkastore.NewClient(cfg.Kafka.Brokers)
		if err != nil {
			in.Close()
			return nil, err
		}
		if err := kafkastore.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		in.kafka = client
		log.Info("kafka audit stream enabled", "topic", cfg.Kafka.AuditTopic)
	}
	return in, nil
}

// Health pings every configured backend.
func (in *infra) Health(ctx context.Context) error {
	var errs []error
	if in.db != nil {
		if err := in.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if in.redis != nil {
		if err := in.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if in.kafka != nil {
		if err := in.kafka.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

type policyStores struct {
	reader ports.PolicyStore
	files  *store.FileStore
	cache  *cache.Cache
}

// buildPolicyStore layers the configured stores: Postgres, then Redis, then
// the policy directory, each falling back to the next while unavailable,
// behind the process-wide cache.
func buildPolicyStore(ctx context.Context, cfg config.Server, in *infra, m *vmetrics.Metrics, log *slog.Logger) (*policyStores, error) {
	files := store.NewFileStore(cfg.PolicyDir)
	var backend ports.PolicyStore = files
	if in.redis != nil {
		backend = store.NewFallback(store.NewRedis(in.redis.Client), backend, store.WithFallbackLogger(log))
	}
	if in.db != nil {
		backend = store.NewFallback(store.NewPostgres(in.db), backend, store.WithFallbackLogger(log))
	}

	out := &policyStores{reader: backend, files: files}
	if !cfg.PolicyCacheEnabled {
		return out, nil
	}

	out.cache = cache.New()
	loaded, err := files.LoadAll(ctx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load policies from %s: %w", cfg.PolicyDir, err)
	}
	publish.Reload(ctx, out.cache, loaded, nil)
	log.Info("policies loaded", "dir", cfg.PolicyDir, "count", len(loaded))

	out.reader = cache.NewStore(backend, out.cache, cache.WithLogger(log), cache.WithMetrics(m))
	return out, nil
}

// watchReload reloads the policy directory into the cache on SIGHUP.
func (p *policyStores) watchReload(ctx context.Context, ops ports.AuditPort, log *slog.Logger) {
	if p.cache == nil {
		return
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			loaded, err := p.files.LoadAll(ctx)
			if err != nil {
				log.Error("policy reload failed, keeping current policies", "error", err)
				continue
			}
			publish.Reload(ctx, p.cache, loaded, ops)
			log.Info("policies reloaded", "count", len(loaded))
		}
	}
}

type auditing struct {
	compliance audit.Emitter
	ops        *publisher.Publisher
}

func (a *auditing) Close() {
	_ = a.ops.Close()
}

// buildAudit selects the compliance sink: the Postgres outbox (relayed to
// Kafka when brokers are configured), Kafka directly, or memory.
func buildAudit(ctx context.Context, cfg config.Server, in *infra, log *slog.Logger) (*auditing, error) {
	var sink audit.Store
	switch {
	case in.db != nil:
		outboxStore := pgaudit.New(in.db)
		sink = outboxStore
		if in.kafka != nil {
			relay := outbox.New(outboxStore, kafkastore.New(in.kafka, cfg.Kafka.AuditTopic), outbox.WithLogger(log))
			go func() {
				if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("outbox relay stopped", "error", err)
				}
			}()
		}
	case in.kafka != nil:
		sink = kafkastore.New(in.kafka, cfg.Kafka.AuditTopic)
	default:
		log.Warn("no durable audit sink configured, compliance events are kept in memory")
		sink = memorystore.NewInMemoryStore()
	}

	return &auditing{
		compliance: compliance.New(sink,
			compliance.WithLogger(log),
			compliance.WithMetrics(compliance.NewMetrics(prometheus.DefaultRegisterer)),
		),
		ops: publisher.NewPublisher(memorystore.NewInMemoryStore(),
			publisher.WithAsyncBuffer(1024),
			publisher.WithLogger(log),
		),
	}, nil
}
