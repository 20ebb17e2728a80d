package conflict

import (
	"encoding/json"
	"time"
)

// Side сторона, чье содержимое победило
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
	SideMerged Side = "merged"
)

// StrategyName имя стратегии разрешения
type StrategyName string

const (
	LastWriteWins StrategyName = "last-write-wins"
	FieldMerge    StrategyName = "field-merge"
	Manual        StrategyName = "manual"
)

const rationaleNoDivergence = "no divergence"

// Resolution результат разрешения конфликта
type Resolution struct {
	Strategy    StrategyName    `json:"strategy"`
	Winner      Side            `json:"winner"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Deleted     bool            `json:"deleted"`
	Discarded   json.RawMessage `json:"discarded,omitempty"`
	Rationale   string          `json:"rationale"`
	NeedsReview bool            `json:"needs_review"`
}

// NoDivergence сообщает, что стороны уже совпадали
func (r Resolution) NoDivergence() bool {
	return r.Rationale == rationaleNoDivergence
}

// AuditEntry запись журнала разрешенных конфликтов; не удаляется
type AuditEntry struct {
	ID               string          `json:"id"`
	ChangeID         int64           `json:"change_id"`
	EntityType       string          `json:"entity_type"`
	EntityID         string          `json:"entity_id"`
	Strategy         StrategyName    `json:"strategy"`
	Winner           Side            `json:"winner"`
	WinningPayload   json.RawMessage `json:"winning_payload,omitempty"`
	DiscardedPayload json.RawMessage `json:"discarded_payload,omitempty"`
	Rationale        string          `json:"rationale"`
	NeedsReview      bool            `json:"needs_review"`
	LocalTimestamp   time.Time       `json:"local_timestamp"`
	RemoteVersion    int64           `json:"remote_version"`
	RemoteModifiedAt time.Time       `json:"remote_modified_at"`
	ResolvedAt       time.Time       `json:"resolved_at"`
}
