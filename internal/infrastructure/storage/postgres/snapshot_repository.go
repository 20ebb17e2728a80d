package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/snapshot"
)

// SnapshotRepository хранилище снимков сущностей с оптимистичной блокировкой
type SnapshotRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSnapshotRepository(db *sql.DB, log *slog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With("component", "snapshot_repository"),
	}
}

func (r *SnapshotRepository) Get(ctx context.Context, key snapshot.Key) (*snapshot.Snapshot, error) {
	const query = `
		SELECT entity_type, entity_id, version, payload, deleted, modified_at, last_modified_by
		FROM snapshots
		WHERE entity_type = $1 AND entity_id = $2`

	var (
		snap    snapshot.Snapshot
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, query, key.Type, key.ID).Scan(
		&snap.EntityType,
		&snap.EntityID,
		&snap.Version,
		&payload,
		&snap.Deleted,
		&snap.ModifiedAt,
		&snap.LastModifiedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		r.log.Error("failed to get snapshot", "key", key.String(), "error", err)
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	if payload != nil {
		snap.Payload = json.RawMessage(payload)
	}
	snap.ModifiedAt = snap.ModifiedAt.UTC()
	return &snap, nil
}

// CompareAndSwap вставляет первую версию либо обновляет строку с совпадающей версией.
// При отказе возвращает текущую версию сервера.
func (r *SnapshotRepository) CompareAndSwap(ctx context.Context, snap *snapshot.Snapshot, expected int64) (snapshot.PutResult, error) {
	var (
		version int64
		err     error
	)

	if expected == 0 {
		const insert = `
			INSERT INTO snapshots (entity_type, entity_id, version, payload, deleted, modified_at, last_modified_by)
			VALUES ($1, $2, 1, $3, $4, $5, $6)
			ON CONFLICT (entity_type, entity_id) DO NOTHING
			RETURNING version`
		err = r.db.QueryRowContext(ctx, insert,
			snap.EntityType, snap.EntityID, jsonOrNull(snap.Payload), snap.Deleted, snap.ModifiedAt, snap.LastModifiedBy,
		).Scan(&version)
	} else {
		const update = `
			UPDATE snapshots
			SET version = version + 1, payload = $3, deleted = $4, modified_at = $5, last_modified_by = $6
			WHERE entity_type = $1 AND entity_id = $2 AND version = $7
			RETURNING version`
		err = r.db.QueryRowContext(ctx, update,
			snap.EntityType, snap.EntityID, jsonOrNull(snap.Payload), snap.Deleted, snap.ModifiedAt, snap.LastModifiedBy, expected,
		).Scan(&version)
	}

	if err == nil {
		return snapshot.PutResult{Accepted: true, Version: version}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.log.Error("failed to write snapshot", "key", snap.Key().String(), "error", err)
		return snapshot.PutResult{}, fmt.Errorf("write snapshot: %w", err)
	}

	current, err := r.currentVersion(ctx, snap.Key())
	if err != nil {
		return snapshot.PutResult{}, err
	}
	return snapshot.PutResult{Accepted: false, Version: current}, nil
}

func (r *SnapshotRepository) currentVersion(ctx context.Context, key snapshot.Key) (int64, error) {
	const query = `SELECT version FROM snapshots WHERE entity_type = $1 AND entity_id = $2`

	var version int64
	err := r.db.QueryRowContext(ctx, query, key.Type, key.ID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

func jsonOrNull(payload json.RawMessage) interface{} {
	if len(payload) == 0 {
		return nil
	}
	return string(payload)
}
