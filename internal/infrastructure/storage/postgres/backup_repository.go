package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/backup"
)

// BackupRepository серверный архив резервных копий устройств
type BackupRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewBackupRepository(db *sql.DB, log *slog.Logger) *BackupRepository {
	return &BackupRepository{
		db:  db,
		log: log.With("component", "backup_repository"),
	}
}

func (r *BackupRepository) SaveBackup(ctx context.Context, deviceID string, snap *backup.Snapshot) error {
	const query = `
		INSERT INTO device_backups (device_id, id, created_at, kind, payload, size_bytes, checksum, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (device_id, id) DO NOTHING`

	metadata, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		deviceID, snap.ID, snap.CreatedAt, string(snap.Kind), []byte(snap.Payload), snap.SizeBytes, snap.Checksum, string(metadata))
	if err != nil {
		r.log.Error("failed to save backup", "device", deviceID, "id", snap.ID, "error", err)
		return fmt.Errorf("save backup: %w", err)
	}
	return nil
}

func (r *BackupRepository) GetBackup(ctx context.Context, deviceID, id string) (*backup.Snapshot, error) {
	const query = `
		SELECT id, created_at, kind, payload, size_bytes, checksum, metadata
		FROM device_backups
		WHERE device_id = $1 AND id = $2`

	snap, err := scanBackup(r.db.QueryRowContext(ctx, query, deviceID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backup.ErrNotFound
		}
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return snap, nil
}

func (r *BackupRepository) ListBackups(ctx context.Context, deviceID string) ([]backup.Snapshot, error) {
	const query = `
		SELECT id, created_at, kind, NULL::bytea, size_bytes, checksum, metadata
		FROM device_backups
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		r.log.Error("failed to list backups", "device", deviceID, "error", err)
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	snaps := make([]backup.Snapshot, 0)
	for rows.Next() {
		snap, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

func (r *BackupRepository) DeleteBackups(ctx context.Context, deviceID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, deviceID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := `DELETE FROM device_backups WHERE device_id = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("failed to delete backups", "device", deviceID, "error", err)
		return fmt.Errorf("delete backups: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBackup(row rowScanner) (*backup.Snapshot, error) {
	var (
		snap     backup.Snapshot
		kind     string
		payload  []byte
		metadata []byte
	)
	if err := row.Scan(&snap.ID, &snap.CreatedAt, &kind, &payload, &snap.SizeBytes, &snap.Checksum, &metadata); err != nil {
		return nil, err
	}

	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.Kind = backup.Kind(kind)
	snap.Location = backup.LocationRemote
	if payload != nil {
		snap.Payload = json.RawMessage(payload)
	}
	if err := json.Unmarshal(metadata, &snap.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &snap, nil
}
