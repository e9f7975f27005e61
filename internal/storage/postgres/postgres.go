// Package postgres records sessions into PostgreSQL/PostGIS through the
// gorm backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/internal/database"
	gormstorage "github.com/uell/livelink/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend embeds the gorm backend; the connection is opened by Init.
type Backend struct {
	*gormstorage.Backend
	cfg    config.DBConfig
	logger *slog.Logger
	open   func(config.DBConfig) (*gorm.DB, error)
}

func New(cfg config.DBConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger, open: connect}
}

func connect(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

// Init connects, migrates and starts the writer.
func (b *Backend) Init() error {
	db, err := b.open(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.logger.Info("Connected to postgres", "host", b.cfg.Host, "database", b.cfg.Database)
	return nil
}

func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
