package backup

import (
	"encoding/json"
	"time"

	"scoutsync/internal/domain/state"
)

// ContentVersion версия формата содержимого резервной копии
const ContentVersion = 1

// Destination куда сохранять резервную копию
type Destination string

const (
	DestinationLocal  Destination = "local"
	DestinationRemote Destination = "remote"
	DestinationBoth   Destination = "both"
)

func (d Destination) Valid() bool {
	switch d {
	case DestinationLocal, DestinationRemote, DestinationBoth:
		return true
	}
	return false
}

// Location где фактически лежит содержимое копии
type Location string

const (
	LocationLocal  Location = "local"
	LocationRemote Location = "remote"
	LocationBoth   Location = "both"
)

// HasLocal сообщает, хранится ли содержимое локально
func (l Location) HasLocal() bool {
	return l == LocationLocal || l == LocationBoth
}

// Kind как была создана копия
type Kind string

const (
	KindAutomatic Kind = "automatic"
	KindManual    Kind = "manual"
)

// Metadata сведения об устройстве и объеме данных
type Metadata struct {
	AppVersion  string `json:"app_version"`
	DeviceID    string `json:"device_id"`
	EntityCount int    `json:"entity_count"`
	StorageUsed int64  `json:"storage_used"`
}

// Content сериализуемое содержимое резервной копии
type Content struct {
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	Data      state.Dump `json:"data"`
	Metadata  Metadata   `json:"metadata"`
}

// Snapshot полный снимок локального состояния
type Snapshot struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SizeBytes int64           `json:"size_bytes"`
	Checksum  string          `json:"checksum"`
	Location  Location        `json:"location"`
	Metadata  Metadata        `json:"metadata"`
}

// Config конфигурация резервного копирования
type Config struct {
	Interval    time.Duration `json:"interval"`
	Retention   int           `json:"retention"`
	Destination Destination   `json:"destination"`
	AppVersion  string        `json:"app_version"`
	DeviceID    string        `json:"device_id"`
}

func DefaultConfig() *Config {
	return &Config{
		Interval:    time.Hour,
		Retention:   10,
		Destination: DestinationLocal,
		AppVersion:  "dev",
	}
}
