package memory

import (
	"context"
	"sort"
	"sync"

	"scoutsync/internal/domain/backup"
)

// BackupRepository индекс резервных копий в памяти
type BackupRepository struct {
	mu    sync.RWMutex
	snaps map[string]backup.Snapshot
}

func NewBackupRepository() *BackupRepository {
	return &BackupRepository{snaps: make(map[string]backup.Snapshot)}
}

func (r *BackupRepository) Save(_ context.Context, snap *backup.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *snap
	stored.Payload = clone(snap.Payload)
	r.snaps[snap.ID] = stored
	return nil
}

func (r *BackupRepository) Get(_ context.Context, id string) (*backup.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snaps[id]
	if !ok {
		return nil, backup.ErrNotFound
	}
	snap.Payload = clone(snap.Payload)
	return &snap, nil
}

func (r *BackupRepository) List(_ context.Context) ([]backup.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]backup.Snapshot, 0, len(r.snaps))
	for _, snap := range r.snaps {
		out = append(out, snap)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *BackupRepository) Delete(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.snaps, id)
	}
	return nil
}

// RemoteBackupStore удаленное хранилище копий в памяти; реализует backup.RemoteStore
type RemoteBackupStore struct {
	mu    sync.RWMutex
	snaps map[string]backup.Snapshot

	// FailPut заставляет PutBackup возвращать ошибку
	FailPut error
}

func NewRemoteBackupStore() *RemoteBackupStore {
	return &RemoteBackupStore{snaps: make(map[string]backup.Snapshot)}
}

func (r *RemoteBackupStore) PutBackup(_ context.Context, snap *backup.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailPut != nil {
		return r.FailPut
	}
	stored := *snap
	stored.Payload = clone(snap.Payload)
	r.snaps[snap.ID] = stored
	return nil
}

func (r *RemoteBackupStore) GetBackup(_ context.Context, id string) (*backup.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snaps[id]
	if !ok {
		return nil, backup.ErrNotFound
	}
	snap.Payload = clone(snap.Payload)
	return &snap, nil
}

func sortNewestFirst(snaps []backup.Snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID > snaps[j].ID
		}
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
}

// ArchiveRepository серверный архив копий в памяти, разделенный по устройствам
type ArchiveRepository struct {
	mu      sync.RWMutex
	devices map[string]map[string]backup.Snapshot
}

func NewArchiveRepository() *ArchiveRepository {
	return &ArchiveRepository{devices: make(map[string]map[string]backup.Snapshot)}
}

func (r *ArchiveRepository) SaveBackup(_ context.Context, deviceID string, snap *backup.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.devices[deviceID] == nil {
		r.devices[deviceID] = make(map[string]backup.Snapshot)
	}
	stored := *snap
	stored.Payload = clone(snap.Payload)
	stored.Location = backup.LocationRemote
	r.devices[deviceID][snap.ID] = stored
	return nil
}

func (r *ArchiveRepository) GetBackup(_ context.Context, deviceID, id string) (*backup.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.devices[deviceID][id]
	if !ok {
		return nil, backup.ErrNotFound
	}
	snap.Payload = clone(snap.Payload)
	return &snap, nil
}

func (r *ArchiveRepository) ListBackups(_ context.Context, deviceID string) ([]backup.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]backup.Snapshot, 0, len(r.devices[deviceID]))
	for _, snap := range r.devices[deviceID] {
		snap.Payload = clone(snap.Payload)
		out = append(out, snap)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *ArchiveRepository) DeleteBackups(_ context.Context, deviceID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.devices[deviceID], id)
	}
	return nil
}
