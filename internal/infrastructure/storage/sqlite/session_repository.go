package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	syncdomain "scoutsync/internal/domain/sync"
)

// SessionRepository хранит итоги сессий целиком в JSON
type SessionRepository struct {
	s *Storage
}

func NewSessionRepository(s *Storage) *SessionRepository {
	return &SessionRepository{s: s}
}

func (r *SessionRepository) SaveSession(ctx context.Context, summary *syncdomain.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO sync_sessions (id, started_at, finished_at, status, summary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			summary = excluded.summary
	`, summary.ID, toNanos(summary.StartedAt), toNanos(summary.FinishedAt), string(summary.Status), string(data))
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

func (r *SessionRepository) LastSession(ctx context.Context) (*syncdomain.Summary, error) {
	var data string
	err := r.s.db.QueryRowContext(ctx, `
		SELECT summary FROM sync_sessions ORDER BY started_at DESC, rowid DESC LIMIT 1
	`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, syncdomain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}

	var summary syncdomain.Summary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("ошибка разбора сессии: %w", err)
	}
	return &summary, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, limit int) ([]syncdomain.Summary, error) {
	query := `SELECT summary FROM sync_sessions ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	sessions := make([]syncdomain.Summary, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сессии: %w", err)
		}
		var summary syncdomain.Summary
		if err := json.Unmarshal([]byte(data), &summary); err != nil {
			return nil, fmt.Errorf("ошибка разбора сессии: %w", err)
		}
		sessions = append(sessions, summary)
	}
	return sessions, rows.Err()
}
