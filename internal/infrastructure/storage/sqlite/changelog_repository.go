package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scoutsync/internal/domain/changelog"
)

type ChangeLogRepository struct {
	s *Storage
}

func NewChangeLogRepository(s *Storage) *ChangeLogRepository {
	return &ChangeLogRepository{s: s}
}

const changeColumns = `id, entity_type, entity_id, operation, payload, base_version,
	local_timestamp, sync_state, failure_reason, retryable, updated_at`

func (r *ChangeLogRepository) Append(ctx context.Context, rec *changelog.ChangeRecord) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `
		INSERT INTO changes (entity_type, entity_id, operation, payload, base_version,
		                     local_timestamp, sync_state, failure_reason, retryable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EntityType, rec.EntityID, string(rec.Operation), nullableBytes(rec.Payload), rec.BaseVersion,
		toNanos(rec.LocalTimestamp), string(rec.SyncState), rec.FailureReason, rec.Retryable, toNanos(rec.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("ошибка сохранения изменения: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения идентификатора: %w", err)
	}
	return id, nil
}

func (r *ChangeLogRepository) Get(ctx context.Context, id int64) (*changelog.ChangeRecord, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM changes WHERE id = ?`, id)

	rec, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, changelog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения изменения: %w", err)
	}
	return rec, nil
}

func (r *ChangeLogRepository) ListByStates(ctx context.Context, states ...changelog.SyncState) ([]changelog.ChangeRecord, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(states))
	args := make([]interface{}, len(states))
	for i, st := range states {
		placeholders[i] = "?"
		args[i] = string(st)
	}

	rows, err := r.s.db.QueryContext(ctx,
		`SELECT `+changeColumns+` FROM changes WHERE sync_state IN (`+strings.Join(placeholders, ", ")+`) ORDER BY id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	records := make([]changelog.ChangeRecord, 0)
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования изменения: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *ChangeLogRepository) ApplyUpdates(ctx context.Context, updates []changelog.StateUpdate) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			reason := ""
			if u.To == changelog.StateFailed {
				reason = u.Reason
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE changes
				SET sync_state = ?, failure_reason = ?, retryable = ?, updated_at = ?
				WHERE id = ?
			`, string(u.To), reason, u.Retryable, toNanos(u.At), u.ID)
			if err != nil {
				return fmt.Errorf("ошибка обновления состояния: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return changelog.ErrNotFound
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO change_transitions (change_id, from_state, to_state, reason, retryable, at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, u.ID, string(u.From), string(u.To), u.Reason, u.Retryable, toNanos(u.At)); err != nil {
				return fmt.Errorf("ошибка записи истории: %w", err)
			}
		}
		return nil
	})
}

func (r *ChangeLogRepository) DeleteConfirmedBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := r.s.db.ExecContext(ctx,
		`DELETE FROM changes WHERE sync_state = ? AND updated_at < ?`,
		string(changelog.StateConfirmed), toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления изменений: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *ChangeLogRepository) Transitions(ctx context.Context, id int64) ([]changelog.Transition, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT change_id, from_state, to_state, reason, retryable, at
		FROM change_transitions
		WHERE change_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var transitions []changelog.Transition
	for rows.Next() {
		var (
			t        changelog.Transition
			from, to string
			at       int64
		)
		if err := rows.Scan(&t.ChangeID, &from, &to, &t.Reason, &t.Retryable, &at); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		t.From = changelog.SyncState(from)
		t.To = changelog.SyncState(to)
		t.At = fromNanos(at)
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChange(row scanner) (*changelog.ChangeRecord, error) {
	var (
		rec              changelog.ChangeRecord
		op, st           string
		payload          []byte
		localTS, updated int64
	)
	if err := row.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &op, &payload, &rec.BaseVersion,
		&localTS, &st, &rec.FailureReason, &rec.Retryable, &updated); err != nil {
		return nil, err
	}

	rec.Operation = changelog.Operation(op)
	rec.SyncState = changelog.SyncState(st)
	if payload != nil {
		rec.Payload = json.RawMessage(payload)
	}
	rec.LocalTimestamp = fromNanos(localTS)
	rec.UpdatedAt = fromNanos(updated)
	return &rec, nil
}
