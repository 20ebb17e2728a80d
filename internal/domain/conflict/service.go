package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/snapshot"
)

// Service разрешает конфликты выбранной стратегией и ведет аудит
type Service struct {
	strategy Strategy
	repo     AuditRepository
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает сервис разрешения конфликтов
func NewService(strategy Strategy, repo AuditRepository, log *slog.Logger) *Service {
	if strategy == nil {
		strategy = LastWriteWinsStrategy{}
	}
	return &Service{
		strategy: strategy,
		repo:     repo,
		log:      log.With("component", "conflict_resolver"),
		now:      time.Now,
	}
}

// Strategy возвращает имя активной стратегии
func (s *Service) Strategy() StrategyName {
	return s.strategy.Name()
}

// Resolve всегда возвращает результат. Ошибка записи аудита только логируется.
func (s *Service) Resolve(ctx context.Context, local changelog.ChangeRecord, remote snapshot.Snapshot) Resolution {
	res := s.strategy.Resolve(local, remote)

	entry := &AuditEntry{
		ID:               newAuditID(),
		ChangeID:         local.ID,
		EntityType:       local.EntityType,
		EntityID:         local.EntityID,
		Strategy:         res.Strategy,
		Winner:           res.Winner,
		WinningPayload:   res.Payload,
		DiscardedPayload: res.Discarded,
		Rationale:        res.Rationale,
		NeedsReview:      res.NeedsReview,
		LocalTimestamp:   local.LocalTimestamp,
		RemoteVersion:    remote.Version,
		RemoteModifiedAt: remote.ModifiedAt,
		ResolvedAt:       s.now().UTC(),
	}

	if s.repo != nil {
		if err := s.repo.SaveAudit(ctx, entry); err != nil {
			s.log.Error("failed to save conflict audit",
				"change_id", local.ID, "entity", local.Key().String(), "error", err)
		}
	}

	s.log.Info("conflict resolved",
		"change_id", local.ID,
		"entity", local.Key().String(),
		"strategy", res.Strategy,
		"winner", res.Winner,
		"rationale", res.Rationale,
	)

	return res
}

// Audit возвращает последние записи аудита
func (s *Service) Audit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if s.repo == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.repo.ListAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflict audit: %w", err)
	}
	return entries, nil
}

func newAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
