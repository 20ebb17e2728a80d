package snapshot

import "context"

// Repository хранилище снимков с оптимистичной блокировкой
type Repository interface {
	// Get возвращает снимок или ErrNotFound
	Get(ctx context.Context, key Key) (*Snapshot, error)

	// CompareAndSwap записывает снимок, только если текущая версия равна expected.
	// Новая версия назначается хранилищем.
	CompareAndSwap(ctx context.Context, snap *Snapshot, expected int64) (PutResult, error)
}
