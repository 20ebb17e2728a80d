package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"scoutsync/internal/domain/backup"
)

type BackupRepository struct {
	s *Storage
}

func NewBackupRepository(s *Storage) *BackupRepository {
	return &BackupRepository{s: s}
}

func (r *BackupRepository) Save(ctx context.Context, snap *backup.Snapshot) error {
	metadata, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO backups (id, created_at, kind, payload, size_bytes, checksum, location, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			location = excluded.location
	`, snap.ID, toNanos(snap.CreatedAt), string(snap.Kind), nullableBytes(snap.Payload), snap.SizeBytes,
		snap.Checksum, string(snap.Location), string(metadata))
	if err != nil {
		return fmt.Errorf("ошибка сохранения резервной копии: %w", err)
	}
	return nil
}

func (r *BackupRepository) Get(ctx context.Context, id string) (*backup.Snapshot, error) {
	row := r.s.db.QueryRowContext(ctx, `
		SELECT id, created_at, kind, payload, size_bytes, checksum, location, metadata
		FROM backups WHERE id = ?
	`, id)

	snap, err := scanBackup(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения резервной копии: %w", err)
	}
	return snap, nil
}

// List не загружает содержимое копий
func (r *BackupRepository) List(ctx context.Context) ([]backup.Snapshot, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, created_at, kind, NULL, size_bytes, checksum, location, metadata
		FROM backups
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	snaps := make([]backup.Snapshot, 0)
	for rows.Next() {
		snap, err := scanBackup(rows, false)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования резервной копии: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

func (r *BackupRepository) Delete(ctx context.Context, ids []string) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id); err != nil {
				return fmt.Errorf("ошибка удаления резервной копии: %w", err)
			}
		}
		return nil
	})
}

func scanBackup(row scanner, withPayload bool) (*backup.Snapshot, error) {
	var (
		snap           backup.Snapshot
		kind, location string
		payload        []byte
		metadata       string
		created        int64
	)
	if err := row.Scan(&snap.ID, &created, &kind, &payload, &snap.SizeBytes, &snap.Checksum, &location, &metadata); err != nil {
		return nil, err
	}

	snap.CreatedAt = fromNanos(created)
	snap.Kind = backup.Kind(kind)
	snap.Location = backup.Location(location)
	if withPayload && payload != nil {
		snap.Payload = payload
	}
	if err := json.Unmarshal([]byte(metadata), &snap.Metadata); err != nil {
		return nil, fmt.Errorf("ошибка разбора метаданных: %w", err)
	}
	return &snap, nil
}
