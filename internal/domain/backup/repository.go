package backup

import "context"

// Repository локальный индекс резервных копий
type Repository interface {
	Save(ctx context.Context, snap *Snapshot) error
	Get(ctx context.Context, id string) (*Snapshot, error)
	// List возвращает копии от новых к старым
	List(ctx context.Context) ([]Snapshot, error)
	Delete(ctx context.Context, ids []string) error
}

// RemoteStore удаленное хранилище резервных копий
type RemoteStore interface {
	PutBackup(ctx context.Context, snap *Snapshot) error
	GetBackup(ctx context.Context, id string) (*Snapshot, error)
}

// ArchiveRepository серверное хранилище копий, разделенное по устройствам
type ArchiveRepository interface {
	SaveBackup(ctx context.Context, deviceID string, snap *Snapshot) error
	GetBackup(ctx context.Context, deviceID, id string) (*Snapshot, error)
	ListBackups(ctx context.Context, deviceID string) ([]Snapshot, error)
	DeleteBackups(ctx context.Context, deviceID string, ids []string) error
}
