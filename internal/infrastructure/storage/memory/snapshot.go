package memory

import (
	"context"
	"sync"

	"scoutsync/internal/domain/snapshot"
)

// SnapshotRepository серверное хранилище снимков в памяти с проверкой версии
type SnapshotRepository struct {
	mu    sync.Mutex
	snaps map[snapshot.Key]snapshot.Snapshot
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snaps: make(map[snapshot.Key]snapshot.Snapshot)}
}

func (r *SnapshotRepository) Get(_ context.Context, key snapshot.Key) (*snapshot.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.snaps[key]
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	snap.Payload = clone(snap.Payload)
	return &snap, nil
}

func (r *SnapshotRepository) CompareAndSwap(_ context.Context, snap *snapshot.Snapshot, expected int64) (snapshot.PutResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := snap.Key()
	current, exists := r.snaps[key]
	currentVersion := int64(0)
	if exists {
		currentVersion = current.Version
	}
	if currentVersion != expected {
		return snapshot.PutResult{Accepted: false, Version: currentVersion}, nil
	}

	stored := *snap
	stored.Payload = clone(snap.Payload)
	stored.Version = currentVersion + 1
	r.snaps[key] = stored
	return snapshot.PutResult{Accepted: true, Version: stored.Version}, nil
}
