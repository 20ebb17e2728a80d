package sync

import (
	"context"
	"encoding/json"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/conflict"
	"scoutsync/internal/domain/snapshot"
)

// ChangeLog журнал локальных изменений с точки зрения движка
type ChangeLog interface {
	Pending(ctx context.Context) ([]changelog.ChangeRecord, error)
	RecoverInFlight(ctx context.Context) (int, error)
	MarkInFlight(ctx context.Context, ids []int64) error
	MarkConfirmed(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, ids []int64, reason string) error
	MarkFailedPermanently(ctx context.Context, ids []int64, reason string) error
	Compact(ctx context.Context) (int, error)
}

// RemoteStore удаленное хранилище с оптимистичной блокировкой по версии
type RemoteStore interface {
	GetSnapshot(ctx context.Context, key snapshot.Key) (*snapshot.Snapshot, error)
	PutSnapshot(ctx context.Context, key snapshot.Key, payload json.RawMessage, expectedVersion int64) (snapshot.PutResult, error)
	DeleteSnapshot(ctx context.Context, key snapshot.Key, expectedVersion int64) (snapshot.PutResult, error)
}

// LocalState локальная копия сущностей и известные версии сервера
type LocalState interface {
	Apply(ctx context.Context, key snapshot.Key, op changelog.Operation, payload json.RawMessage) error
	KnownVersion(ctx context.Context, key snapshot.Key) (int64, error)
	SetKnownVersion(ctx context.Context, key snapshot.Key, version int64) error
}

// Resolver разрешает расхождение локальной записи и серверного снимка
type Resolver interface {
	Resolve(ctx context.Context, local changelog.ChangeRecord, remote snapshot.Snapshot) conflict.Resolution
}

// Connectivity сигнал доступности удаленного хранилища
type Connectivity interface {
	Online() bool
}

// ConnectivityEvents сообщает только о смене доступности: true означает переход offline -> online
type ConnectivityEvents interface {
	Connectivity
	Changes() <-chan bool
}

// Notifier доставка уведомлений; ошибки не влияют на синхронизацию
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Observer получатель итогов сессий и ошибок записей
type Observer interface {
	SessionFinished(ctx context.Context, summary Summary)
	RecordFailed(ctx context.Context, failure RecordError)
}

// SessionLock межпроцессная блокировка сессии. Процессы клиента делят
// одно локальное хранилище, и сессия в одном из них исключает сессии в других.
type SessionLock interface {
	TryLock() (bool, error)
	Unlock() error
	Locked() (bool, error)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

type noopObserver struct{}

func (noopObserver) SessionFinished(context.Context, Summary)  {}
func (noopObserver) RecordFailed(context.Context, RecordError) {}
