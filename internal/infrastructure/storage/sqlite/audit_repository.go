package sqlite

import (
	"context"
	"fmt"

	"scoutsync/internal/domain/conflict"
)

type AuditRepository struct {
	s *Storage
}

func NewAuditRepository(s *Storage) *AuditRepository {
	return &AuditRepository{s: s}
}

func (r *AuditRepository) SaveAudit(ctx context.Context, entry *conflict.AuditEntry) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO conflict_audit (id, change_id, entity_type, entity_id, strategy, winner,
		                            winning_payload, discarded_payload, rationale, needs_review,
		                            local_timestamp, remote_version, remote_modified_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ChangeID, entry.EntityType, entry.EntityID, string(entry.Strategy), string(entry.Winner),
		nullableBytes(entry.WinningPayload), nullableBytes(entry.DiscardedPayload), entry.Rationale, entry.NeedsReview,
		toNanos(entry.LocalTimestamp), entry.RemoteVersion, toNanos(entry.RemoteModifiedAt), toNanos(entry.ResolvedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи аудита: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListAudit(ctx context.Context, limit int) ([]conflict.AuditEntry, error) {
	query := `
		SELECT id, change_id, entity_type, entity_id, strategy, winner,
		       winning_payload, discarded_payload, rationale, needs_review,
		       local_timestamp, remote_version, remote_modified_at, resolved_at
		FROM conflict_audit
		ORDER BY resolved_at DESC, rowid DESC`
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

	entries := make([]conflict.AuditEntry, 0)
	for rows.Next() {
		var (
			e                           conflict.AuditEntry
			strategy, winner            string
			winning, discarded          []byte
			localTS, remoteMod, resolve int64
		)
		if err := rows.Scan(&e.ID, &e.ChangeID, &e.EntityType, &e.EntityID, &strategy, &winner,
			&winning, &discarded, &e.Rationale, &e.NeedsReview,
			&localTS, &e.RemoteVersion, &remoteMod, &resolve); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		e.Strategy = conflict.StrategyName(strategy)
		e.Winner = conflict.Side(winner)
		e.WinningPayload = winning
		e.DiscardedPayload = discarded
		e.LocalTimestamp = fromNanos(localTS)
		e.RemoteModifiedAt = fromNanos(remoteMod)
		e.ResolvedAt = fromNanos(resolve)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
