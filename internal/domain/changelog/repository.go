package changelog

import (
	"context"
	"time"
)

// StateUpdate атомарное изменение состояния одной записи
type StateUpdate struct {
	ID        int64
	From      SyncState
	To        SyncState
	Reason    string
	Retryable bool
	At        time.Time
}

// Repository долговременное хранилище журнала изменений
type Repository interface {
	// Append сохраняет запись и возвращает назначенный монотонный идентификатор
	Append(ctx context.Context, rec *ChangeRecord) (int64, error)
	Get(ctx context.Context, id int64) (*ChangeRecord, error)

	// ListByStates возвращает записи в указанных состояниях по возрастанию id
	ListByStates(ctx context.Context, states ...SyncState) ([]ChangeRecord, error)

	// ApplyUpdates применяет изменения состояний одной транзакцией и дописывает историю
	ApplyUpdates(ctx context.Context, updates []StateUpdate) error

	DeleteConfirmedBefore(ctx context.Context, before time.Time) (int, error)
	Transitions(ctx context.Context, id int64) ([]Transition, error)
}
