package state

import (
	"context"

	"scoutsync/internal/domain/snapshot"
)

// Repository локальное хранилище отслеживаемого состояния
type Repository interface {
	GetEntity(ctx context.Context, key snapshot.Key) (*Entity, error)
	PutEntity(ctx context.Context, entity *Entity) error
	DeleteEntity(ctx context.Context, key snapshot.Key) error
	ListEntities(ctx context.Context) ([]Entity, error)

	// KnownVersion возвращает 0 для сущности, которую сервер еще не подтверждал
	KnownVersion(ctx context.Context, key snapshot.Key) (int64, error)
	SetKnownVersion(ctx context.Context, key snapshot.Key, version int64) error
	KnownVersions(ctx context.Context) (map[snapshot.Key]int64, error)

	GetSetting(ctx context.Context, namespace, key string) (string, error)
	PutSetting(ctx context.Context, namespace, key, value string) error
	ListSettings(ctx context.Context, namespace string) (map[string]string, error)

	// ReplaceAll атомарно заменяет все состояние
	ReplaceAll(ctx context.Context, dump Dump) error
}
