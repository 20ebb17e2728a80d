package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

// Servicer серверная сторона контракта удаленного хранилища
type Servicer interface {
	GetSnapshot(ctx context.Context, key Key) (*Snapshot, error)
	PutSnapshot(ctx context.Context, key Key, payload json.RawMessage, expectedVersion int64) (PutResult, error)
	DeleteSnapshot(ctx context.Context, key Key, expectedVersion int64) (PutResult, error)
}

// Service реализация удаленного хранилища снимков
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewService создает новый сервис снимков
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "snapshot_service"),
		now:  time.Now,
	}
}

// GetSnapshot возвращает текущий снимок; nil, если сущность никогда не существовала
func (s *Service) GetSnapshot(ctx context.Context, key Key) (*Snapshot, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	snap, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snap, nil
}

// PutSnapshot записывает новое содержимое сущности при совпадении версии
func (s *Service) PutSnapshot(ctx context.Context, key Key, payload json.RawMessage, expectedVersion int64) (PutResult, error) {
	if err := validateKey(key); err != nil {
		return PutResult{}, err
	}
	if err := validatePayload(payload); err != nil {
		return PutResult{}, err
	}

	snap := &Snapshot{
		EntityType:     key.Type,
		EntityID:       key.ID,
		Payload:        payload,
		ModifiedAt:     s.now().UTC(),
		LastModifiedBy: deviceOrUnknown(ctx),
	}

	result, err := s.repo.CompareAndSwap(ctx, snap, expectedVersion)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to put snapshot: %w", err)
	}

	s.logResult("put", key, expectedVersion, result)
	return result, nil
}

// DeleteSnapshot помечает сущность удаленной при совпадении версии
func (s *Service) DeleteSnapshot(ctx context.Context, key Key, expectedVersion int64) (PutResult, error) {
	if err := validateKey(key); err != nil {
		return PutResult{}, err
	}

	current, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PutResult{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	// Нечего удалять: сущность не создавалась
	if current == nil && expectedVersion == 0 {
		return PutResult{Accepted: true, Version: 0}, nil
	}
	// Уже удалена этой же версией
	if current != nil && current.Deleted && current.Version == expectedVersion {
		return PutResult{Accepted: true, Version: current.Version}, nil
	}

	snap := &Snapshot{
		EntityType:     key.Type,
		EntityID:       key.ID,
		Deleted:        true,
		ModifiedAt:     s.now().UTC(),
		LastModifiedBy: deviceOrUnknown(ctx),
	}

	result, err := s.repo.CompareAndSwap(ctx, snap, expectedVersion)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to delete snapshot: %w", err)
	}

	s.logResult("delete", key, expectedVersion, result)
	return result, nil
}

func (s *Service) logResult(op string, key Key, expected int64, result PutResult) {
	if result.Accepted {
		s.log.Debug("snapshot write accepted",
			"op", op, "key", key.String(), "version", result.Version)
		return
	}
	s.log.Info("snapshot write rejected",
		"op", op, "key", key.String(), "expected", expected, "current", result.Version)
}

func validateKey(key Key) error {
	if key.Type == "" || key.ID == "" {
		return ErrInvalidKey
	}
	return nil
}

func validatePayload(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: payload must be a JSON object", ErrInvalidPayload)
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("%w: malformed JSON", ErrInvalidPayload)
	}
	return nil
}

func deviceOrUnknown(ctx context.Context) string {
	if id, ok := DeviceFromContext(ctx); ok {
		return id
	}
	return "unknown"
}
