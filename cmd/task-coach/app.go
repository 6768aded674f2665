package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aimd54/task-coach/internal/config"
	"github.com/aimd54/task-coach/internal/lock"
	"github.com/aimd54/task-coach/internal/notify"
	"github.com/aimd54/task-coach/internal/parser"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/coach"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/milestone"
	"github.com/aimd54/task-coach/internal/service/progress"
	"github.com/aimd54/task-coach/internal/service/punishment"
	"github.com/aimd54/task-coach/internal/service/report"
	"github.com/aimd54/task-coach/internal/service/scheduler"
	"github.com/aimd54/task-coach/internal/service/shop"
	"github.com/aimd54/task-coach/internal/service/streak"
	"github.com/aimd54/task-coach/internal/service/tasks"
	"github.com/aimd54/task-coach/internal/service/unlock"
	"github.com/aimd54/task-coach/pkg/logger"
)

// app holds every wired component.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *repository.DB
	rdb        *redis.Client
	ledger     *ledger.Service
	tasks      *tasks.Store
	shop       *shop.Service
	unlock     *unlock.Service
	milestones *milestone.Tracker
	coach      *coach.Service
	reports    *report.Service
	scheduler  *scheduler.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	db, err := repository.Open(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db}

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.Database.Redis.Host != "" {
		a.rdb, err = lock.NewClient(ctx, &cfg.Database.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		locker = lock.NewRedisLocker(a.rdb, cfg.Database.Redis.LockTTL, log)
		log.Info().Str("host", cfg.Database.Redis.Host).Msg("Using Redis owner locks")
	} else {
		log.Warn().Msg("Redis not configured, owner locks are process-local no-ops")
	}

	opts, err := ledger.OptionsFromConfig(&cfg.Coach)
	if err != nil {
		a.close()
		return nil, err
	}

	notifier := notify.NewManager(&cfg.Notifications, log.Component("notify"))

	a.ledger = ledger.NewService(db, opts, log)
	a.tasks = tasks.NewStore(db, cfg.Coach.StoreTimeout, log)
	a.shop = shop.NewService(db, a.ledger, cfg.Coach.StoreTimeout, log)
	a.unlock = unlock.NewService(a.ledger, log)
	a.milestones = milestone.NewTracker(a.ledger, db, log)
	a.coach = coach.NewService(coach.Deps{
		Ledger:     a.ledger,
		Tasks:      a.tasks,
		Parser:     parser.NewLLMClient(&cfg.Parser, log.Component("parser")),
		Progress:   progress.NewProcessor(log),
		Streaks:    streak.NewTracker(a.ledger, repository.NewReplyTrackingRepository(db), log),
		Punishment: punishment.NewEngine(a.ledger, log),
		Milestones: a.milestones,
		Notifier:   notifier,
		Locker:     locker,
	}, cfg.Coach.Recipient, log.Component("coach"))
	a.reports = report.NewService(a.ledger, a.tasks, repository.NewHistoryRepository(db), notifier, log)
	a.scheduler = scheduler.NewService(cfg, a.coach, a.reports, a.shop, log.Component("scheduler"))

	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Error().Err(err).Msg("Failed to close database")
	}
}
