package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/api/handler"
	"github.com/assurminut/crm-identity/internal/core/ports"
	"github.com/assurminut/crm-identity/internal/infrastructure/cache"
	mongodb "github.com/assurminut/crm-identity/internal/infrastructure/db/mongo"
	"github.com/assurminut/crm-identity/internal/infrastructure/db/postgres"
	redisdb "github.com/assurminut/crm-identity/internal/infrastructure/db/redis"
	"github.com/assurminut/crm-identity/internal/infrastructure/db/sqlite"
	"github.com/assurminut/crm-identity/internal/infrastructure/queue"
	"github.com/assurminut/crm-identity/internal/pkg/config"
)

// store bundles the account repository with the resources that back it.
type store struct {
	accounts ports.AccountRepository
	audit    ports.AuditSink
	ready    handler.Check
	close    func(ctx context.Context)
}

// openStore connects to the configured backing store and applies its schema.
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Store.Mongo.URI,
			Database: cfg.Store.Mongo.Database,
			AppName:  serviceName,
			Timeout:  cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		if err := mongodb.Migrate(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return &store{
			accounts: mongodb.NewAccountRepository(db),
			audit:    mongodb.NewAuditRepository(db),
			ready:    mongodb.Ping(db),
			close:    func(ctx context.Context) { _ = client.Disconnect(ctx) },
		}, nil

	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:     cfg.Store.Postgres.DSN,
			Timeout: cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &store{
			accounts: postgres.NewAccountRepository(pool),
			audit:    postgres.NewAuditRepository(pool),
			ready:    pool.Ping,
			close:    func(context.Context) { pool.Close() },
		}, nil

	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return &store{
			accounts: sqlite.NewAccountRepository(db),
			audit:    sqlite.NewAuditRepository(db),
			ready:    db.PingContext,
			close:    func(context.Context) { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// sessionState is the authentication cache plus the token deny-list. They
// share a backend so replicas agree on both.
type sessionState struct {
	cache       ports.AuthCache
	revocations ports.TokenRevoker
	// ready is nil when the backend has no external dependency.
	ready handler.Check
	close func()
}

// openCache builds the authentication cache and token deny-list for the
// configured cache driver.
func openCache(ctx context.Context, cfg *config.Config) (*sessionState, error) {
	switch cfg.Cache.Driver {
	case config.CacheRedis:
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Timeout:  2 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return &sessionState{
			cache:       redisdb.NewAuthCache(client, cfg.Cache.TTL),
			revocations: redisdb.NewRevocations(client),
			ready:       func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:       func() { _ = client.Close() },
		}, nil
	case config.CacheNone:
		return &sessionState{cache: cache.Disabled{}, revocations: cache.NewRevocations(), close: func() {}}, nil
	default:
		return &sessionState{cache: cache.NewMemory(cfg.Cache.TTL), revocations: cache.NewRevocations(), close: func() {}}, nil
	}
}

// auditSink picks where audit events end up.
func auditSink(cfg *config.Config, st *store, log zerolog.Logger) ports.AuditSink {
	if cfg.Audit.Sink == config.AuditSinkLog {
		return queue.LogSink{Log: log}
	}
	return st.audit
}
