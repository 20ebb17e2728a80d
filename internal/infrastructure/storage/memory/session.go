package memory

import (
	"context"
	"sync"

	syncdomain "scoutsync/internal/domain/sync"
)

// SessionRepository история сессий синхронизации в памяти
type SessionRepository struct {
	mu       sync.RWMutex
	sessions []syncdomain.Summary
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

func (r *SessionRepository) SaveSession(_ context.Context, summary *syncdomain.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, *summary)
	return nil
}

func (r *SessionRepository) LastSession(_ context.Context) (*syncdomain.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sessions) == 0 {
		return nil, syncdomain.ErrSessionNotFound
	}
	last := r.sessions[len(r.sessions)-1]
	return &last, nil
}

func (r *SessionRepository) ListSessions(_ context.Context, limit int) ([]syncdomain.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]syncdomain.Summary, 0, len(r.sessions))
	for i := len(r.sessions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.sessions[i])
	}
	return out, nil
}
