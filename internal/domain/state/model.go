package state

import (
	"encoding/json"
	"time"

	"scoutsync/internal/domain/snapshot"
)

const (
	NamespacePreferences = "preferences"
	NamespaceSettings    = "settings"
)

// Entity локальная копия отслеживаемой сущности
type Entity struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (e Entity) Key() snapshot.Key {
	return snapshot.Key{Type: e.EntityType, ID: e.EntityID}
}

// Dump полное локальное состояние: сущности, предпочтения и настройки
type Dump struct {
	Entities      []Entity          `json:"entities"`
	KnownVersions map[string]int64  `json:"known_versions,omitempty"`
	Preferences   map[string]string `json:"preferences"`
	Settings      map[string]string `json:"settings"`
}
