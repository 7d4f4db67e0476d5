package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/example/restrobook/internal/booking"
	"github.com/example/restrobook/internal/config"
	"github.com/example/restrobook/internal/db"
	"github.com/example/restrobook/internal/logging"
	"github.com/example/restrobook/internal/redislock"
)

// env is what every database-backed command starts from.
type env struct {
	cfg    config.Config
	logger hclog.Logger
	db     *db.DB
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &env{cfg: cfg, logger: logger, db: d}, nil
}

func (e *env) Close() { e.db.Close() }

// locker picks the slot lock backend. The returned close func releases any
// connection the backend opened.
func (e *env) locker(ctx context.Context) (booking.Locker, func(), error) {
	if e.cfg.LockBackend != config.LockBackendRedis {
		return booking.NewSlotLocks(), func() {}, nil
	}
	rdb, err := redislock.Connect(ctx, e.cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	l := redislock.New(rdb, e.cfg.LockTTL, redislock.WithLogger(e.logger.Named("redislock")))
	return l, func() { _ = rdb.Close() }, nil
}
