package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage локальное долговременное хранилище клиента
type Storage struct {
	db *sql.DB
}

// New открывает базу и создает таблицы
func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// sqlite допускает одного писателя
	db.SetMaxOpenConns(1)

	storage := &Storage{db: db}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *Storage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			payload BLOB,
			base_version INTEGER NOT NULL DEFAULT 0,
			local_timestamp INTEGER NOT NULL,
			sync_state TEXT NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			retryable INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_changes_state ON changes(sync_state, id);

		CREATE TABLE IF NOT EXISTS change_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			change_id INTEGER NOT NULL REFERENCES changes(id) ON DELETE CASCADE,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			retryable INTEGER NOT NULL DEFAULT 1,
			at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_change_transitions_change ON change_transitions(change_id);

		CREATE TABLE IF NOT EXISTS entities (
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (entity_type, entity_id)
		);

		CREATE TABLE IF NOT EXISTS entity_versions (
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			PRIMARY KEY (entity_type, entity_id)
		);

		CREATE TABLE IF NOT EXISTS settings (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);

		CREATE TABLE IF NOT EXISTS conflict_audit (
			id TEXT PRIMARY KEY,
			change_id INTEGER NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			strategy TEXT NOT NULL,
			winner TEXT NOT NULL,
			winning_payload BLOB,
			discarded_payload BLOB,
			rationale TEXT NOT NULL,
			needs_review INTEGER NOT NULL DEFAULT 0,
			local_timestamp INTEGER NOT NULL,
			remote_version INTEGER NOT NULL,
			remote_modified_at INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conflict_audit_resolved ON conflict_audit(resolved_at);

		CREATE TABLE IF NOT EXISTS backups (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB,
			size_bytes INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			location TEXT NOT NULL,
			metadata TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_backups_created ON backups(created_at);

		CREATE TABLE IF NOT EXISTS sync_sessions (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			summary TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sync_sessions_started ON sync_sessions(started_at);
	`)

	return err
}

// Ping проверяет доступность базы
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// toNanos хранит время как unix-наносекунды; нулевое время как 0
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullableBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return []byte(b)
}
