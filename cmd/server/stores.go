package main

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bapflow/cmd/server/config"
	"bapflow/internal/callbacks"
	"bapflow/internal/confirm"
	ordersdb "bapflow/internal/db/orders"
)

var openOrderDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildOrderStore opens Postgres for order records, falling back to the
// in-memory store when no DSN is configured or initialization fails.
func buildOrderStore(ctx context.Context, logger *zap.Logger) (confirm.OrderStore, func()) {
	cleanup := func() {}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, using in-memory order store")
		return confirm.NewInMemoryOrderStore(), cleanup
	}

	db, err := openOrderDB("pgx", dsn)
	if err != nil {
		logger.Warn("postgres open failed, using in-memory order store", zap.Error(err))
		return confirm.NewInMemoryOrderStore(), cleanup
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := ordersdb.NewStoreWithSchema(setupCtx, db)
	if err != nil {
		logger.Warn("postgres init failed, using in-memory order store", zap.Error(err))
		_ = db.Close()
		return confirm.NewInMemoryOrderStore(), cleanup
	}

	logger.Info("postgres order store enabled")
	cleanup = func() {
		if err := db.Close(); err != nil {
			logger.Error("close postgres", zap.Error(err))
		}
	}
	return store, cleanup
}

// buildCallbackStore connects to Redis for inbound protocol callbacks.
func buildCallbackStore(ctx context.Context) (*callbacks.RedisStore, func(), error) {
	cfg, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	store := callbacks.NewRedisStore(redisClientAdapter{client: client}, "on_confirm:", cfg.CallbackTTL)
	cleanup := func() {
		_ = client.Close()
	}
	return store, cleanup, nil
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Pipeline() callbacks.RedisPipeliner {
	return redisPipelineAdapter{pipe: a.client.Pipeline()}
}

func (a redisClientAdapter) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	return a.client.LRange(ctx, key, start, stop)
}

type redisPipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p redisPipelineAdapter) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return p.pipe.RPush(ctx, key, values...)
}

func (p redisPipelineAdapter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return p.pipe.Expire(ctx, key, expiration)
}

func (p redisPipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}
