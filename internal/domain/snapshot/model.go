package snapshot

import (
	"encoding/json"
	"time"
)

// Key идентифицирует сущность в удаленном хранилище
type Key struct {
	Type string `json:"entity_type"`
	ID   string `json:"entity_id"`
}

func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// Snapshot текущее состояние сущности на сервере.
// Удаленная сущность хранится как tombstone: Deleted=true, версия продолжает расти.
type Snapshot struct {
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Version        int64           `json:"version"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Deleted        bool            `json:"deleted"`
	ModifiedAt     time.Time       `json:"modified_at"`
	LastModifiedBy string          `json:"last_modified_by"`
}

func (s Snapshot) Key() Key {
	return Key{Type: s.EntityType, ID: s.EntityID}
}

// Tombstone описывает отсутствующую на сервере сущность
func Tombstone(key Key, version int64) Snapshot {
	return Snapshot{
		EntityType: key.Type,
		EntityID:   key.ID,
		Version:    version,
		Deleted:    true,
	}
}

// PutResult результат условной записи.
// При Accepted=true Version содержит новую версию, иначе текущую версию сервера.
type PutResult struct {
	Accepted bool  `json:"accepted"`
	Version  int64 `json:"version"`
}

// VersionOf возвращает версию снимка, 0 для несуществующей сущности
func VersionOf(s *Snapshot) int64 {
	if s == nil {
		return 0
	}
	return s.Version
}
