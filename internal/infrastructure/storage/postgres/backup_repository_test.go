package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/backup"
)

var backupColumns = []string{"id", "created_at", "kind", "payload", "size_bytes", "checksum", "metadata"}

func newBackupRepo(t *testing.T) (*BackupRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBackupRepository(db, slog.Default()), mock
}

func TestBackupRepository_SaveBackup(t *testing.T) {
	repo, mock := newBackupRepo(t)
	created := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO device_backups")).
		WithArgs("device-a", "b1", created, "manual", []byte(`{"version":1}`), int64(13), "abc",
			`{"app_version":"1.0.0","device_id":"device-a","entity_count":2,"storage_used":13}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveBackup(context.Background(), "device-a", &backup.Snapshot{
		ID:        "b1",
		CreatedAt: created,
		Kind:      backup.KindManual,
		Payload:   json.RawMessage(`{"version":1}`),
		SizeBytes: 13,
		Checksum:  "abc",
		Metadata:  backup.Metadata{AppVersion: "1.0.0", DeviceID: "device-a", EntityCount: 2, StorageUsed: 13},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupRepository_GetBackup(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newBackupRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM device_backups WHERE device_id = $1 AND id = $2")).
			WithArgs("device-a", "b1").
			WillReturnRows(sqlmock.NewRows(backupColumns).
				AddRow("b1", created, "automatic", []byte(`{"version":1}`), int64(13), "abc", []byte(`{"app_version":"1.0.0"}`)))

		snap, err := repo.GetBackup(ctx, "device-a", "b1")
		require.NoError(t, err)
		assert.Equal(t, backup.KindAutomatic, snap.Kind)
		assert.Equal(t, backup.LocationRemote, snap.Location)
		assert.Equal(t, "1.0.0", snap.Metadata.AppVersion)
		assert.JSONEq(t, `{"version":1}`, string(snap.Payload))
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newBackupRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM device_backups")).
			WithArgs("device-a", "missing").
			WillReturnRows(sqlmock.NewRows(backupColumns))

		_, err := repo.GetBackup(ctx, "device-a", "missing")
		assert.ErrorIs(t, err, backup.ErrNotFound)
	})
}

func TestBackupRepository_ListBackups(t *testing.T) {
	repo, mock := newBackupRepo(t)
	created := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs("device-a").
		WillReturnRows(sqlmock.NewRows(backupColumns).
			AddRow("b2", created.Add(time.Hour), "automatic", nil, int64(20), "def", []byte(`{}`)).
			AddRow("b1", created, "manual", nil, int64(13), "abc", []byte(`{}`)))

	snaps, err := repo.ListBackups(context.Background(), "device-a")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "b2", snaps[0].ID)
	assert.Nil(t, snaps[0].Payload)
	assert.Equal(t, int64(13), snaps[1].SizeBytes)
}

func TestBackupRepository_DeleteBackups(t *testing.T) {
	t.Run("deletes listed ids", func(t *testing.T) {
		repo, mock := newBackupRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM device_backups WHERE device_id = $1 AND id IN ($2, $3)")).
			WithArgs("device-a", "b1", "b2").
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, repo.DeleteBackups(context.Background(), "device-a", []string{"b1", "b2"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty list is a no-op", func(t *testing.T) {
		repo, mock := newBackupRepo(t)

		require.NoError(t, repo.DeleteBackups(context.Background(), "device-a", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
