package memory

import (
	"context"
	"sync"

	"scoutsync/internal/domain/conflict"
)

// AuditRepository журнал разрешенных конфликтов в памяти
type AuditRepository struct {
	mu      sync.RWMutex
	entries []conflict.AuditEntry
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) SaveAudit(_ context.Context, entry *conflict.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *AuditRepository) ListAudit(_ context.Context, limit int) ([]conflict.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]conflict.AuditEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.entries[i])
	}
	return out, nil
}
