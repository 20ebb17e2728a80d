package backup

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/state"
)

// StateSource локальное состояние, которое снимается и восстанавливается целиком
type StateSource interface {
	Dump(ctx context.Context) (state.Dump, error)
	Restore(ctx context.Context, dump state.Dump) error
}

// ChangeSource журнал изменений; снимок его не читает, restore только проверяет
type ChangeSource interface {
	Pending(ctx context.Context) ([]changelog.ChangeRecord, error)
	RecoverInFlight(ctx context.Context) (int, error)
	MarkFailedPermanently(ctx context.Context, ids []int64, reason string) error
}

// SyncGuard не дает сессии синхронизации начаться, пока идет восстановление.
// ok == false означает, что сессия уже идет.
type SyncGuard interface {
	Acquire() (release func(), ok bool, err error)
}

const supersededReason = "superseded by backup restore"

// Snapshotter создает, хранит и восстанавливает полные снимки состояния
type Snapshotter struct {
	state   StateSource
	changes ChangeSource
	sync    SyncGuard
	repo    Repository
	remote  RemoteStore
	log     *slog.Logger
	config  *Config
	now     func() time.Time

	// сериализует запись и вытеснение копий
	mu sync.Mutex
}

// NewSnapshotter создает сервис резервного копирования. remote может быть nil.
func NewSnapshotter(st StateSource, changes ChangeSource, guard SyncGuard, repo Repository, remote RemoteStore, log *slog.Logger, config *Config) *Snapshotter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Retention < 1 {
		config.Retention = 1
	}
	if !config.Destination.Valid() {
		config.Destination = DestinationLocal
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}

	return &Snapshotter{
		state:   st,
		changes: changes,
		sync:    guard,
		repo:    repo,
		remote:  remote,
		log:     log.With("component", "backup_snapshotter"),
		config:  config,
		now:     time.Now,
	}
}

// Capture снимает состояние и сохраняет его в настроенное место
func (s *Snapshotter) Capture(ctx context.Context, kind Kind) (*Snapshot, error) {
	snap, err := s.Build(ctx, kind)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, snap, s.config.Destination)
}

// Build сериализует текущее локальное состояние, не обращаясь к журналу изменений
func (s *Snapshotter) Build(ctx context.Context, kind Kind) (*Snapshot, error) {
	dump, err := s.state.Dump(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dump local state: %w", err)
	}

	data, err := json.Marshal(dump)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal local state: %w", err)
	}

	createdAt := s.now().UTC()
	meta := Metadata{
		AppVersion:  s.config.AppVersion,
		DeviceID:    s.config.DeviceID,
		EntityCount: len(dump.Entities),
		StorageUsed: int64(len(data)),
	}

	raw, err := json.Marshal(Content{
		Version:   ContentVersion,
		CreatedAt: createdAt,
		Data:      dump,
		Metadata:  meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup content: %w", err)
	}

	payload, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize backup content: %w", err)
	}

	if kind == "" {
		kind = KindManual
	}

	return &Snapshot{
		ID:        newBackupID(),
		CreatedAt: createdAt,
		Kind:      kind,
		Payload:   payload,
		SizeBytes: int64(len(payload)),
		Checksum:  checksum(payload),
		Metadata:  meta,
	}, nil
}

// Store сохраняет копию. При ошибке удаленного хранилища копия остается локальной.
func (s *Snapshotter) Store(ctx context.Context, snap *Snapshot, dest Destination) (*Snapshot, error) {
	if snap == nil {
		return nil, errors.New("nil backup snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snap
	stored.Location = LocationLocal

	if dest == DestinationRemote || dest == DestinationBoth {
		if err := s.putRemote(ctx, snap); err != nil {
			s.log.Warn("remote backup failed, keeping local copy",
				"id", snap.ID, "error", err)
		} else if dest == DestinationRemote {
			stored.Location = LocationRemote
		} else {
			stored.Location = LocationBoth
		}
	}

	// Индекс всегда локальный; содержимое остается только если копия есть локально
	if !stored.Location.HasLocal() {
		stored.Payload = nil
	}

	if err := s.repo.Save(ctx, &stored); err != nil {
		return nil, fmt.Errorf("failed to save backup: %w", err)
	}

	s.log.Info("backup stored",
		"id", stored.ID,
		"kind", stored.Kind,
		"location", stored.Location,
		"size_bytes", stored.SizeBytes,
		"entities", stored.Metadata.EntityCount)

	if err := s.evict(ctx); err != nil {
		s.log.Error("failed to evict old backups", "error", err)
	}

	return &stored, nil
}

// Restore заменяет локальное состояние содержимым копии целиком.
// Без force отказывает при наличии несинхронизированных изменений,
// включая захваченные прерванной сессией; при идущей синхронизации
// отказывает всегда. На время восстановления сессии не начинаются.
func (s *Snapshotter) Restore(ctx context.Context, id string, force bool) error {
	if s.sync != nil {
		release, ok, err := s.sync.Acquire()
		if err != nil {
			return fmt.Errorf("failed to pause sync: %w", err)
		}
		if !ok {
			return ErrSyncRunning
		}
		defer release()
	}

	// сессия не идет, значит in-flight записи остались от прерванной
	recovered, err := s.changes.RecoverInFlight(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover in-flight changes: %w", err)
	}
	if recovered > 0 {
		s.log.Info("in-flight changes returned to pending before restore", "count", recovered)
	}

	pending, err := s.changes.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to check pending changes: %w", err)
	}
	if len(pending) > 0 && !force {
		return fmt.Errorf("%w: %d pending", ErrPendingChanges, len(pending))
	}

	snap, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	content, err := decode(snap)
	if err != nil {
		return err
	}

	if err := s.state.Restore(ctx, content.Data); err != nil {
		return fmt.Errorf("failed to restore backup %s: %w", id, err)
	}

	if len(pending) > 0 {
		ids := make([]int64, 0, len(pending))
		for _, rec := range pending {
			ids = append(ids, rec.ID)
		}
		if err := s.changes.MarkFailedPermanently(ctx, ids, supersededReason); err != nil {
			return fmt.Errorf("state restored but failed to retire pending changes: %w", err)
		}
		s.log.Warn("pending changes superseded by restore", "count", len(ids))
	}

	s.log.Info("backup restored",
		"id", snap.ID,
		"created_at", snap.CreatedAt,
		"entities", len(content.Data.Entities))
	return nil
}

// List возвращает копии от новых к старым
func (s *Snapshotter) List(ctx context.Context) ([]Snapshot, error) {
	snaps, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return snaps, nil
}

// Clear удаляет все копии, кроме самой свежей
func (s *Snapshotter) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}
	if len(snaps) <= 1 {
		return 0, nil
	}

	ids := idsOf(snaps[1:])
	if err := s.repo.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to delete backups: %w", err)
	}

	s.log.Info("previous backups cleared", "removed", len(ids), "kept", snaps[0].ID)
	return len(ids), nil
}

// Run создает автоматические копии по таймеру до отмены контекста
func (s *Snapshotter) Run(ctx context.Context) error {
	s.log.Info("backup loop started", "interval", s.config.Interval)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("backup loop stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Capture(ctx, KindAutomatic); err != nil {
				s.log.Error("automatic backup failed", "error", err)
			}
		}
	}
}

// evict удаляет самые старые копии сверх лимита; самая новая не удаляется никогда
func (s *Snapshotter) evict(ctx context.Context) error {
	snaps, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	retention := s.config.Retention
	if retention < 1 {
		retention = 1
	}
	if len(snaps) <= retention {
		return nil
	}

	ids := idsOf(snaps[retention:])
	if err := s.repo.Delete(ctx, ids); err != nil {
		return err
	}

	s.log.Debug("old backups evicted", "count", len(ids))
	return nil
}

func (s *Snapshotter) putRemote(ctx context.Context, snap *Snapshot) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	return s.remote.PutBackup(ctx, snap)
}

func (s *Snapshotter) load(ctx context.Context, id string) (*Snapshot, error) {
	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup %s: %w", id, err)
	}
	if len(snap.Payload) > 0 {
		return snap, nil
	}

	if s.remote == nil {
		return nil, ErrNoRemote
	}
	remote, err := s.remote.GetBackup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote backup %s: %w", id, err)
	}
	if remote.Checksum == "" {
		remote.Checksum = snap.Checksum
	}
	return remote, nil
}

func decode(snap *Snapshot) (*Content, error) {
	canonical, err := jcs.Transform(snap.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: backup %s is not valid JSON: %v", ErrInvalidBackup, snap.ID, err)
	}
	if checksum(canonical) != snap.Checksum {
		return nil, fmt.Errorf("%w: backup %s", ErrChecksumMismatch, snap.ID)
	}

	var content Content
	if err := json.Unmarshal(canonical, &content); err != nil {
		return nil, fmt.Errorf("%w: backup %s: %v", ErrInvalidBackup, snap.ID, err)
	}
	if content.Version > ContentVersion {
		return nil, fmt.Errorf("%w: backup %s has unsupported version %d", ErrInvalidBackup, snap.ID, content.Version)
	}
	return &content, nil
}

// checksum BLAKE2b-256 от канонического JSON
func checksum(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func idsOf(snaps []Snapshot) []string {
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.ID)
	}
	return ids
}

func newBackupID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
