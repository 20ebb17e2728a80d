package backup

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"
)

// Archiver серверная сторона удаленного хранилища копий
type Archiver interface {
	Put(ctx context.Context, deviceID string, snap *Snapshot) error
	Get(ctx context.Context, deviceID, id string) (*Snapshot, error)
	List(ctx context.Context, deviceID string) ([]Snapshot, error)
}

// Archive серверное хранилище резервных копий устройств
type Archive struct {
	repo      ArchiveRepository
	retention int
	log       *slog.Logger
}

// NewArchive создает серверный архив. retention ограничивает число копий на устройство.
func NewArchive(repo ArchiveRepository, retention int, log *slog.Logger) *Archive {
	if retention < 1 {
		retention = DefaultConfig().Retention
	}
	return &Archive{
		repo:      repo,
		retention: retention,
		log:       log.With("component", "backup_archive"),
	}
}

// Put принимает копию от устройства и проверяет ее контрольную сумму
func (a *Archive) Put(ctx context.Context, deviceID string, snap *Snapshot) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidBackup)
	}
	if snap == nil || snap.ID == "" || len(snap.Payload) == 0 {
		return fmt.Errorf("%w: empty backup", ErrInvalidBackup)
	}
	if _, err := decode(snap); err != nil {
		return err
	}

	if err := a.repo.SaveBackup(ctx, deviceID, snap); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}

	snaps, err := a.repo.ListBackups(ctx, deviceID)
	if err != nil {
		a.log.Error("failed to list device backups", "device", deviceID, "error", err)
		return nil
	}
	if len(snaps) > a.retention {
		if err := a.repo.DeleteBackups(ctx, deviceID, idsOf(snaps[a.retention:])); err != nil {
			a.log.Error("failed to evict device backups", "device", deviceID, "error", err)
		}
	}

	a.log.Info("device backup archived", "device", deviceID, "id", snap.ID, "size_bytes", snap.SizeBytes)
	return nil
}

// Get возвращает копию устройства вместе с содержимым
func (a *Archive) Get(ctx context.Context, deviceID, id string) (*Snapshot, error) {
	snap, err := a.repo.GetBackup(ctx, deviceID, id)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List возвращает копии устройства без содержимого, от новых к старым
func (a *Archive) List(ctx context.Context, deviceID string) ([]Snapshot, error) {
	snaps, err := a.repo.ListBackups(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	for i := range snaps {
		snaps[i].Payload = nil
	}
	return snaps, nil
}
