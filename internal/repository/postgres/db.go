package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Config struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	SlowQuery         time.Duration `mapstructure:"slow_query"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// DB owns the pool; every repository call runs under QueryTimeout when it is set.
type DB struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

// New connects the pool; slow statements are reported through l.
func New(ctx context.Context, cfg Config, l *zap.Logger) (*DB, error) {
	pcfg, err := poolConfig(cfg, l)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{Pool: pool, QueryTimeout: cfg.QueryTimeout}, nil
}

func poolConfig(cfg Config, l *zap.Logger) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	setIf(&pcfg.MaxConns, cfg.MaxConns)
	setIf(&pcfg.MinConns, cfg.MinConns)
	setIf(&pcfg.MaxConnLifetime, cfg.MaxConnLifetime)
	setIf(&pcfg.MaxConnIdleTime, cfg.MaxConnIdleTime)
	setIf(&pcfg.HealthCheckPeriod, cfg.HealthCheckPeriod)
	if l == nil {
		l = zap.L()
	}
	pcfg.ConnConfig.Tracer = newQueryTracer(cfg.SlowQuery, l)
	return pcfg, nil
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}

func setIf[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
