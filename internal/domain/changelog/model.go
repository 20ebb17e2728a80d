package changelog

import (
	"encoding/json"
	"time"

	"scoutsync/internal/domain/snapshot"
)

// Operation тип мутации
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// SyncState состояние записи журнала
type SyncState string

const (
	StatePending   SyncState = "pending"
	StateInFlight  SyncState = "in-flight"
	StateConfirmed SyncState = "confirmed"
	StateFailed    SyncState = "failed"
)

// ChangeRecord локальная мутация, ожидающая подтверждения сервером.
// Поля мутации неизменяемы, меняется только состояние синхронизации.
// BaseVersion справочное: версия сервера на момент записи, движок же
// сверяется с версией, известной на момент отправки.
type ChangeRecord struct {
	ID             int64           `json:"id"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Operation      Operation       `json:"operation"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	BaseVersion    int64           `json:"base_version"`
	LocalTimestamp time.Time       `json:"local_timestamp"`
	SyncState      SyncState       `json:"sync_state"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	Retryable      bool            `json:"retryable"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (r ChangeRecord) Key() snapshot.Key {
	return snapshot.Key{Type: r.EntityType, ID: r.EntityID}
}

// Transition одна запись истории смены состояний
type Transition struct {
	ChangeID  int64     `json:"change_id"`
	From      SyncState `json:"from"`
	To        SyncState `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Retryable bool      `json:"retryable"`
	At        time.Time `json:"at"`
}

// Config конфигурация журнала изменений
type Config struct {
	Retention time.Duration    `json:"retention"`
	Clock     func() time.Time `json:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		Retention: 24 * time.Hour,
		Clock:     time.Now,
	}
}
