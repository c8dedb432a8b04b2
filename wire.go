package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bartek5186/storesync/internal/audit"
	conf "github.com/bartek5186/storesync/internal/config"
	"github.com/bartek5186/storesync/internal/db"
	"github.com/bartek5186/storesync/internal/docstore"
	"github.com/bartek5186/storesync/internal/progress"
	"github.com/bartek5186/storesync/internal/syncer"
	"github.com/rs/zerolog"
)

// store - to, czego potrzebują reconciler, harmonogram, dziennik i API
type store interface {
	syncer.Repository
	syncer.StateStore
	audit.Store
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore: "mongo" -> docstore, reszta -> gorm (sqlite domyślnie w katalogu aplikacji)
func openStore(ctx context.Context, log zerolog.Logger, cfg *conf.Config, appDir string) (store, io.Closer, error) {
	d := cfg.Database
	if d.Driver == "mongo" {
		name := d.Name
		if name == "" {
			name = "storesync"
		}
		repo, err := docstore.Connect(ctx, d.DSN, name)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info().Str("db", name).Msg("MongoDB ready")
		return repo, repo, nil
	}

	var (
		h   *db.Handle
		err error
	)
	if (d.Driver == "" || d.Driver == "sqlite") && d.DSN == "" {
		h, err = db.OpenAt(appDir)
	} else {
		h, err = db.Open(d.Driver, d.DSN)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := h.Migrate(); err != nil {
		_ = h.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", h.Driver).Msg("DB ready")
	return db.NewRepository(h), closerFunc(h.Close), nil
}

func openProgress(log zerolog.Logger, cfg *conf.Config) (progress.Store, io.Closer, error) {
	ttl := time.Duration(cfg.Progress.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = progress.DefaultTTL
	}
	if cfg.Progress.Backend == "redis" {
		r, err := progress.NewRedisFromURL(cfg.Progress.RedisURL, ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("redis progress store: %w", err)
		}
		log.Info().Msg("progress store: redis")
		return r, r, nil
	}
	return progress.NewMemory(ttl), closerFunc(func() error { return nil }), nil
}

// openAudit: zawsze tabela/kolekcja audit_logs, Kafka gdy skonfigurowane brokery
func openAudit(log zerolog.Logger, cfg *conf.Config, st audit.Store) (audit.Sink, io.Closer) {
	sinks := audit.Multi{audit.NewStoreSink(st)}
	closer := io.Closer(closerFunc(func() error { return nil }))

	if len(cfg.Audit.KafkaBrokers) > 0 {
		topic := cfg.Audit.KafkaTopic
		if topic == "" {
			topic = "storesync.sync-runs"
		}
		k, err := audit.NewKafkaSink(cfg.Audit.KafkaBrokers, topic)
		if err != nil {
			// brak Kafki nie blokuje synchronizacji
			log.Error().Err(err).Strs("brokers", cfg.Audit.KafkaBrokers).Msg("kafka audit sink disabled")
		} else {
			sinks = append(sinks, k)
			closer = k
			log.Info().Str("topic", topic).Msg("kafka audit sink enabled")
		}
	}
	return sinks, closer
}
