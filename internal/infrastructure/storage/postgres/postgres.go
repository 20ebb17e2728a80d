package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scoutsync/internal/app/server/config"
	"scoutsync/internal/infrastructure/migration"
)

type Storage struct {
	db *sql.DB
}

// New подключается к PostgreSQL через pgx и применяет миграции
func New(cfg *config.Config) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DB.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	mg := migration.NewMigration(cfg.DB.Migrations, cfg.DB.DatabaseURI, migration.DefaultEngine)
	if err := mg.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return &Storage{db: db}, nil
}

// NewWithDB оборачивает готовое соединение без миграций
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) DB() *sql.DB {
	return s.db
}

// Ping используется проверкой работоспособности сервера
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
