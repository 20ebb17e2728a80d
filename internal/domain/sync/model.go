package sync

import (
	"time"
)

// Phase фаза сессии синхронизации
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDraining    Phase = "draining"
	PhaseReconciling Phase = "reconciling"
	PhaseCommitting  Phase = "committing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Status статус сессии
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RecordError ошибка обработки одной записи журнала
type RecordError struct {
	ChangeID  int64  `json:"change_id"`
	Entity    string `json:"entity"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

// Summary итог сессии синхронизации.
// Частичный успех считается нормой: сессия сообщает счетчики, а не один флаг.
type Summary struct {
	ID                string        `json:"id"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Status            Status        `json:"status"`
	Phase             Phase         `json:"phase"`
	RecordsProcessed  int           `json:"records_processed"`
	Confirmed         int           `json:"confirmed"`
	Failed            int           `json:"failed"`
	ConflictsResolved int           `json:"conflicts_resolved"`
	Errors            []RecordError `json:"errors"`
	Err               string        `json:"error,omitempty"`
}

// Duration длительность завершенной сессии
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Notification уведомление пользователю
type Notification struct {
	Tag     string
	Title   string
	Message string
}

const (
	TagSyncComplete     = "sync-complete"
	TagConflictResolved = "conflict-resolved"
	TagSyncError        = "sync-error"
)

const (
	ReasonMaxRetries = "max retries exceeded"
	ReasonBlocked    = "blocked by earlier change"
)

// Config конфигурация движка синхронизации
type Config struct {
	// MaxRetries число повторов после первой попытки
	MaxRetries     int           `json:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
	CallTimeout    time.Duration `json:"call_timeout"`
	Interval       time.Duration `json:"interval"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Second,
		CallTimeout:    30 * time.Second,
		Interval:       30 * time.Minute,
	}
}
