package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"scoutsync/internal/domain/changelog"
)

// ChangeLogRepository журнал изменений в памяти процесса
type ChangeLogRepository struct {
	mu          sync.RWMutex
	nextID      int64
	records     map[int64]changelog.ChangeRecord
	transitions map[int64][]changelog.Transition

	// FailAppend заставляет Append возвращать ошибку; используется в тестах
	FailAppend error
}

func NewChangeLogRepository() *ChangeLogRepository {
	return &ChangeLogRepository{
		records:     make(map[int64]changelog.ChangeRecord),
		transitions: make(map[int64][]changelog.Transition),
	}
}

func (r *ChangeLogRepository) Append(_ context.Context, rec *changelog.ChangeRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAppend != nil {
		return 0, r.FailAppend
	}

	r.nextID++
	stored := *rec
	stored.ID = r.nextID
	stored.Payload = clone(rec.Payload)
	r.records[stored.ID] = stored
	return stored.ID, nil
}

func (r *ChangeLogRepository) Get(_ context.Context, id int64) (*changelog.ChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, changelog.ErrNotFound
	}
	return &rec, nil
}

func (r *ChangeLogRepository) ListByStates(_ context.Context, states ...changelog.SyncState) ([]changelog.ChangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[changelog.SyncState]bool, len(states))
	for _, st := range states {
		want[st] = true
	}

	out := make([]changelog.ChangeRecord, 0)
	for _, rec := range r.records {
		if want[rec.SyncState] {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ChangeLogRepository) ApplyUpdates(_ context.Context, updates []changelog.StateUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range updates {
		if _, ok := r.records[u.ID]; !ok {
			return changelog.ErrNotFound
		}
	}

	for _, u := range updates {
		rec := r.records[u.ID]
		rec.SyncState = u.To
		rec.Retryable = u.Retryable
		rec.UpdatedAt = u.At
		if u.To == changelog.StateFailed {
			rec.FailureReason = u.Reason
		} else {
			rec.FailureReason = ""
		}
		r.records[u.ID] = rec
		r.transitions[u.ID] = append(r.transitions[u.ID], changelog.Transition{
			ChangeID:  u.ID,
			From:      u.From,
			To:        u.To,
			Reason:    u.Reason,
			Retryable: u.Retryable,
			At:        u.At,
		})
	}
	return nil
}

func (r *ChangeLogRepository) DeleteConfirmedBefore(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.records {
		if rec.SyncState == changelog.StateConfirmed && rec.UpdatedAt.Before(before) {
			delete(r.records, id)
			delete(r.transitions, id)
			removed++
		}
	}
	return removed, nil
}

func (r *ChangeLogRepository) Transitions(_ context.Context, id int64) ([]changelog.Transition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.records[id]; !ok {
		return nil, changelog.ErrNotFound
	}
	return append([]changelog.Transition(nil), r.transitions[id]...), nil
}
