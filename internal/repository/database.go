// Package repository provides data access layer using GORM for database operations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/task-coach/internal/config"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/pkg/logger"
)

var (
	// ErrVersionConflict is returned when a conditional write finds the row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when an insert hits a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// DB holds the database connection.
type DB struct {
	*gorm.DB
}

// Open connects to the store selected by cfg.Driver.
func Open(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	switch cfg.Driver {
	case "postgres":
		return NewDB(&cfg.Postgres, log)
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLite.Path, gormLogLevel(log))
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("Opened SQLite database")
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDB creates a new PostgreSQL connection.
func NewDB(cfg *config.PostgresConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel(log)),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to PostgreSQL")

	return &DB{db}, nil
}

// OpenSQLite opens a SQLite database. ":memory:" is used by tests.
// SQLite allows a single writer, so the pool is pinned to one connection.
func OpenSQLite(path string, level gormlogger.LogLevel) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &DB{db}, nil
}

func gormLogLevel(log *logger.Logger) gormlogger.LogLevel {
	if log == nil {
		return gormlogger.Silent
	}
	switch log.Level() {
	case zerolog.DebugLevel:
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// AutoMigrate runs database migrations for all models.
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.UserGamification{},
		&models.Task{},
		&models.TaskSequence{},
		&models.ReplyTracking{},
		&models.ExpHistory{},
		&models.PunishmentHistory{},
		&models.PersistenceReward{},
		&models.ShopItem{},
		&models.UserInventory{},
	)
}

// InTx runs fn inside a single transaction. Everything fn touches must go through tx.
// Called on a transaction handle it opens a savepoint instead.
func (db *DB) InTx(ctx context.Context, fn func(tx *DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{tx})
	})
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database is healthy.
func (db *DB) Health() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// isDuplicate reports whether err is a uniqueness violation.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// translate maps store errors onto the package sentinels.
func translate(err error) error {
	if isDuplicate(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
