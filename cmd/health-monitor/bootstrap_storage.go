package main

import (
	"context"
	"fmt"

	config "github.com/NordCoder/Healthwatch/internal/config/health-monitor"
	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/domain/notification"
	"github.com/NordCoder/Healthwatch/internal/domain/outbox"
	"github.com/NordCoder/Healthwatch/internal/repository/memory"
	pg "github.com/NordCoder/Healthwatch/internal/repository/postgres"
	"github.com/NordCoder/Healthwatch/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type storage struct {
	db            *pg.DB
	history       health.HistoryRepo
	incidents     incident.Repo
	notifications notification.Repo
	outbox        outbox.Repository
}

func (s *storage) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

func (s *storage) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func initStorage(ctx context.Context, cfg *config.Config, l *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		l.Warn("using in-memory storage, state is lost on restart")
		return &storage{
			history:       memory.NewHistory(),
			incidents:     memory.NewIncidents(),
			notifications: memory.NewNotifications(),
		}, nil
	}

	db, err := pg.New(ctx, cfg.DB, l)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := migrate(ctx, cfg.DB.DSN); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		l.Info("migrations applied")
	}

	s := &storage{
		db:            db,
		history:       pg.NewHistoryRepo(db),
		incidents:     pg.NewIncidentRepo(db),
		notifications: pg.NewNotificationRepo(db),
	}
	if cfg.Outbox.Enable {
		s.outbox = pg.NewOutboxRepo(db)
	}
	return s, nil
}

func migrate(ctx context.Context, dsn string) (err error) {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sqlDB.Close()) }()
	return migrations.Up(ctx, sqlDB)
}
