package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/snapshot"
)

// Service операции над локальным состоянием
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewService создает сервис локального состояния
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "local_state"),
		now:  time.Now,
	}
}

// Apply применяет мутацию к локальной копии
func (s *Service) Apply(ctx context.Context, key snapshot.Key, op changelog.Operation, payload json.RawMessage) error {
	switch op {
	case changelog.OpCreate, changelog.OpUpdate:
		return s.repo.PutEntity(ctx, &Entity{
			EntityType: key.Type,
			EntityID:   key.ID,
			Payload:    payload,
			UpdatedAt:  s.now().UTC(),
		})
	case changelog.OpDelete:
		err := s.repo.DeleteEntity(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown operation %q", op)
}

// Get возвращает локальную копию сущности
func (s *Service) Get(ctx context.Context, key snapshot.Key) (*Entity, error) {
	return s.repo.GetEntity(ctx, key)
}

// List возвращает все локальные сущности
func (s *Service) List(ctx context.Context) ([]Entity, error) {
	return s.repo.ListEntities(ctx)
}

// KnownVersion реализует changelog.VersionSource
func (s *Service) KnownVersion(ctx context.Context, key snapshot.Key) (int64, error) {
	return s.repo.KnownVersion(ctx, key)
}

// SetKnownVersion запоминает версию сущности, подтвержденную сервером
func (s *Service) SetKnownVersion(ctx context.Context, key snapshot.Key, version int64) error {
	return s.repo.SetKnownVersion(ctx, key, version)
}

// SetPreference сохраняет пользовательское предпочтение
func (s *Service) SetPreference(ctx context.Context, key, value string) error {
	return s.repo.PutSetting(ctx, NamespacePreferences, key, value)
}

// SetSetting сохраняет настройку приложения
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	return s.repo.PutSetting(ctx, NamespaceSettings, key, value)
}

// Dump снимает полное локальное состояние
func (s *Service) Dump(ctx context.Context) (Dump, error) {
	entities, err := s.repo.ListEntities(ctx)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to list entities: %w", err)
	}
	versions, err := s.repo.KnownVersions(ctx)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to list known versions: %w", err)
	}
	prefs, err := s.repo.ListSettings(ctx, NamespacePreferences)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to list preferences: %w", err)
	}
	settings, err := s.repo.ListSettings(ctx, NamespaceSettings)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to list settings: %w", err)
	}

	dump := Dump{
		Entities:      entities,
		KnownVersions: make(map[string]int64, len(versions)),
		Preferences:   prefs,
		Settings:      settings,
	}
	for key, v := range versions {
		dump.KnownVersions[key.String()] = v
	}
	return dump, nil
}

// Restore заменяет локальное состояние целиком
func (s *Service) Restore(ctx context.Context, dump Dump) error {
	if err := s.repo.ReplaceAll(ctx, dump); err != nil {
		return fmt.Errorf("failed to replace local state: %w", err)
	}
	s.log.Info("local state replaced",
		"entities", len(dump.Entities),
		"preferences", len(dump.Preferences),
		"settings", len(dump.Settings))
	return nil
}

// ParseKey разбирает ключ вида "type/id"
func ParseKey(s string) (snapshot.Key, bool) {
	typ, id, ok := strings.Cut(s, "/")
	if !ok || typ == "" || id == "" {
		return snapshot.Key{}, false
	}
	return snapshot.Key{Type: typ, ID: id}, true
}
