package changelog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/snapshot"
)

// VersionSource возвращает последнюю известную клиенту версию сущности на сервере
type VersionSource interface {
	KnownVersion(ctx context.Context, key snapshot.Key) (int64, error)
}

// Service журнал локальных изменений, ожидающих синхронизации
type Service struct {
	repo      Repository
	validator *Validator
	versions  VersionSource
	log       *slog.Logger
	config    *Config

	// сериализует смену состояний; Append не блокируется
	mu sync.Mutex
}

// NewService создает новый журнал изменений
func NewService(repo Repository, validator *Validator, versions VersionSource, log *slog.Logger, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Retention <= 0 {
		config.Retention = DefaultConfig().Retention
	}

	return &Service{
		repo:      repo,
		validator: validator,
		versions:  versions,
		log:       log.With("component", "changelog"),
		config:    config,
	}
}

// Append проверяет мутацию и долговременно сохраняет ее до возврата.
// Ошибка хранилища возвращается вызывающему: мутация не принята.
func (s *Service) Append(ctx context.Context, entityType, entityID string, op Operation, payload json.RawMessage) (*ChangeRecord, error) {
	if s.validator != nil {
		if err := s.validator.Validate(entityType, entityID, op, payload); err != nil {
			s.log.Warn("change rejected by validation",
				"entity_type", entityType, "entity_id", entityID, "error", err)
			return nil, err
		}
	}

	rec := &ChangeRecord{
		EntityType:     entityType,
		EntityID:       entityID,
		Operation:      op,
		Payload:        normalizePayload(op, payload),
		LocalTimestamp: s.config.Clock().UTC(),
		SyncState:      StatePending,
		Retryable:      true,
	}
	rec.UpdatedAt = rec.LocalTimestamp

	if s.versions != nil {
		base, err := s.versions.KnownVersion(ctx, rec.Key())
		if err != nil {
			return nil, fmt.Errorf("failed to read known version: %w", err)
		}
		rec.BaseVersion = base
	}

	id, err := s.repo.Append(ctx, rec)
	if err != nil {
		s.log.Error("failed to append change",
			"entity_type", entityType, "entity_id", entityID, "error", err)
		return nil, fmt.Errorf("failed to append change: %w", err)
	}
	rec.ID = id

	s.log.Debug("change appended",
		"id", rec.ID, "entity", rec.Key().String(), "operation", rec.Operation)
	return rec, nil
}

// Get возвращает запись по идентификатору
func (s *Service) Get(ctx context.Context, id int64) (*ChangeRecord, error) {
	return s.repo.Get(ctx, id)
}

// Pending возвращает записи в состояниях pending и failed по порядку id
func (s *Service) Pending(ctx context.Context) ([]ChangeRecord, error) {
	records, err := s.repo.ListByStates(ctx, StatePending, StateFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}
	return records, nil
}

// MarkInFlight отмечает записи как захваченные сессией синхронизации
func (s *Service) MarkInFlight(ctx context.Context, ids []int64) error {
	return s.transition(ctx, ids, StateInFlight, "claimed by sync session", true)
}

// MarkConfirmed отмечает записи подтвержденными сервером
func (s *Service) MarkConfirmed(ctx context.Context, ids []int64) error {
	return s.transition(ctx, ids, StateConfirmed, "", true)
}

// MarkFailed отмечает записи неудачными; следующая сессия повторит попытку
func (s *Service) MarkFailed(ctx context.Context, ids []int64, reason string) error {
	return s.transition(ctx, ids, StateFailed, reason, true)
}

// MarkFailedPermanently отмечает записи неудачными без повторных попыток
func (s *Service) MarkFailedPermanently(ctx context.Context, ids []int64, reason string) error {
	return s.transition(ctx, ids, StateFailed, reason, false)
}

// RecoverInFlight возвращает в pending записи, оставленные прерванной сессией
func (s *Service) RecoverInFlight(ctx context.Context) (int, error) {
	stale, err := s.repo.ListByStates(ctx, StateInFlight)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-flight changes: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(stale))
	for _, rec := range stale {
		ids = append(ids, rec.ID)
	}
	if err := s.transition(ctx, ids, StatePending, "recovered after interrupted session", true); err != nil {
		return 0, err
	}

	s.log.Info("recovered in-flight changes", "count", len(ids))
	return len(ids), nil
}

// Compact удаляет подтвержденные записи старше окна хранения
func (s *Service) Compact(ctx context.Context) (int, error) {
	before := s.config.Clock().Add(-s.config.Retention)
	removed, err := s.repo.DeleteConfirmedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to compact changelog: %w", err)
	}
	if removed > 0 {
		s.log.Info("changelog compacted", "removed", removed, "before", before)
	}
	return removed, nil
}

// History возвращает историю смены состояний записи
func (s *Service) History(ctx context.Context, id int64) ([]Transition, error) {
	return s.repo.Transitions(ctx, id)
}

func (s *Service) transition(ctx context.Context, ids []int64, to SyncState, reason string, retryable bool) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Clock().UTC()
	updates := make([]StateUpdate, 0, len(ids))
	for _, id := range ids {
		rec, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load change %d: %w", id, err)
		}

		apply, err := allowed(*rec, to, reason, retryable)
		if err != nil {
			return fmt.Errorf("change %d: %w", id, err)
		}
		if !apply {
			continue
		}

		updates = append(updates, StateUpdate{
			ID:        id,
			From:      rec.SyncState,
			To:        to,
			Reason:    reason,
			Retryable: retryable,
			At:        now,
		})
	}

	if len(updates) == 0 {
		return nil
	}
	if err := s.repo.ApplyUpdates(ctx, updates); err != nil {
		return fmt.Errorf("failed to update change states: %w", err)
	}
	return nil
}

// allowed решает, нужна ли смена состояния. Повторная отметка тем же
// состоянием ничего не делает и не считается ошибкой.
func allowed(rec ChangeRecord, to SyncState, reason string, retryable bool) (bool, error) {
	from := rec.SyncState
	if from == to {
		if to == StateFailed && (rec.FailureReason != reason || rec.Retryable != retryable) {
			return true, nil
		}
		return false, nil
	}

	switch from {
	case StatePending:
		if to == StateInFlight || to == StateFailed {
			return true, nil
		}
	case StateFailed:
		if to == StateInFlight {
			return true, nil
		}
	case StateInFlight:
		if to == StateConfirmed || to == StateFailed || to == StatePending {
			return true, nil
		}
	case StateConfirmed:
		// подтвержденная запись терминальна
		return false, nil
	}

	return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func normalizePayload(op Operation, payload json.RawMessage) json.RawMessage {
	if op == OpDelete {
		return nil
	}
	return json.RawMessage(bytes.TrimSpace(payload))
}
