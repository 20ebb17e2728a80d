package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/conflict"
	"scoutsync/internal/domain/snapshot"
)

// Dependencies внешние компоненты движка. Notifier, Observer, Sessions и Lock необязательны.
type Dependencies struct {
	Changes      ChangeLog
	Remote       RemoteStore
	Local        LocalState
	Resolver     Resolver
	Connectivity Connectivity
	Notifier     Notifier
	Observer     Observer
	Sessions     SessionRepository
	Lock         SessionLock
}

// Engine выполняет один полный проход сверки журнала изменений с сервером.
// Одновременно может идти только одна сессия.
type Engine struct {
	deps   Dependencies
	config *Config
	log    *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	running atomic.Bool
	phase   atomic.Value
	last    atomic.Pointer[Summary]
}

// NewEngine создает движок синхронизации
func NewEngine(deps Dependencies, config *Config, log *slog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = defaults.CallTimeout
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}

	e := &Engine{
		deps:   deps,
		config: config,
		log:    log.With("component", "sync_engine"),
		now:    time.Now,
		sleep:  sleepWithContext,
	}
	e.phase.Store(PhaseIdle)
	return e
}

// IsRunning сообщает, идет ли сессия в этом или другом процессе
func (e *Engine) IsRunning() bool {
	if e.running.Load() {
		return true
	}
	if e.deps.Lock == nil {
		return false
	}
	locked, err := e.deps.Lock.Locked()
	if err != nil {
		e.log.Warn("failed to check session lock", "error", err)
		return false
	}
	return locked
}

// Acquire занимает движок так же, как сессия: пока не вызван release,
// сессии не начинаются ни в этом процессе, ни в других.
// ok == false означает, что сессия уже идет.
func (e *Engine) Acquire() (release func(), ok bool, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	if e.deps.Lock != nil {
		held, err := e.deps.Lock.TryLock()
		if err != nil {
			e.running.Store(false)
			return nil, false, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if !held {
			e.running.Store(false)
			return nil, false, nil
		}
	}

	return func() {
		if e.deps.Lock != nil {
			if err := e.deps.Lock.Unlock(); err != nil {
				e.log.Error("failed to release session lock", "error", err)
			}
		}
		e.running.Store(false)
	}, true, nil
}

// RecoverInFlight возвращает в pending записи, захваченные прерванной сессией.
// Пока сессия идет, ее записи не трогаются и возвращается ErrSessionRunning.
func (e *Engine) RecoverInFlight(ctx context.Context) (int, error) {
	release, ok, err := e.Acquire()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrSessionRunning
	}
	defer release()

	return e.deps.Changes.RecoverInFlight(ctx)
}

// Phase текущая фаза; PhaseIdle между сессиями
func (e *Engine) Phase() Phase {
	return e.phase.Load().(Phase)
}

// Run выполняет сессию синхронизации. Ошибка возвращается, только если
// сессия не смогла начаться; ошибки отдельных записей отражаются в Summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	release, ok, err := e.Acquire()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionRunning
	}
	defer func() {
		e.phase.Store(PhaseIdle)
		release()
	}()

	sum := &Summary{
		ID:        newSessionID(),
		StartedAt: e.now().UTC(),
		Status:    StatusRunning,
		Phase:     PhaseIdle,
		Errors:    []RecordError{},
	}
	log := e.log.With("session", sum.ID)
	log.Info("sync session started")

	if e.deps.Connectivity != nil && !e.deps.Connectivity.Online() {
		return e.fail(ctx, log, sum, ErrOffline)
	}

	claimed, err := e.drain(ctx, log, sum)
	if err != nil {
		return e.fail(ctx, log, sum, err)
	}

	for _, records := range groupByEntity(claimed) {
		e.reconcileEntity(ctx, log, sum, records)
	}

	e.setPhase(sum, PhaseCompleted)
	sum.Status = StatusCompleted
	sum.FinishedAt = e.now().UTC()

	log.Info("sync session completed",
		"processed", sum.RecordsProcessed,
		"confirmed", sum.Confirmed,
		"failed", sum.Failed,
		"conflicts", sum.ConflictsResolved,
		"duration", sum.Duration())

	e.finish(ctx, log, sum)

	if _, err := e.deps.Changes.Compact(ctx); err != nil {
		log.Warn("changelog compaction failed", "error", err)
	}

	return sum, nil
}

// LastSessionSummary возвращает итог последней сессии этого процесса
// или последней сохраненной сессии
func (e *Engine) LastSessionSummary(ctx context.Context) (*Summary, error) {
	if last := e.last.Load(); last != nil {
		return copySummary(last), nil
	}
	if e.deps.Sessions == nil {
		return nil, ErrSessionNotFound
	}
	return e.deps.Sessions.LastSession(ctx)
}

// drain захватывает все ожидающие записи. Окончательно отклоненные записи пропускаются.
func (e *Engine) drain(ctx context.Context, log *slog.Logger, sum *Summary) ([]changelog.ChangeRecord, error) {
	e.setPhase(sum, PhaseDraining)

	if _, err := e.deps.Changes.RecoverInFlight(ctx); err != nil {
		return nil, fmt.Errorf("failed to recover in-flight changes: %w", err)
	}

	pending, err := e.deps.Changes.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}

	claimed := make([]changelog.ChangeRecord, 0, len(pending))
	ids := make([]int64, 0, len(pending))
	for _, rec := range pending {
		if rec.SyncState == changelog.StateFailed && !rec.Retryable {
			continue
		}
		rec.SyncState = changelog.StateInFlight
		claimed = append(claimed, rec)
		ids = append(ids, rec.ID)
	}

	if err := e.deps.Changes.MarkInFlight(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to claim changes: %w", err)
	}

	log.Debug("changes claimed", "count", len(claimed), "skipped", len(pending)-len(claimed))
	return claimed, nil
}

// reconcileEntity обрабатывает записи одной сущности строго по порядку id.
// После первой неудачи остальные записи сущности не отправляются.
func (e *Engine) reconcileEntity(ctx context.Context, log *slog.Logger, sum *Summary, records []changelog.ChangeRecord) {
	blocked := false
	for _, rec := range records {
		sum.RecordsProcessed++
		if blocked {
			e.markFailed(ctx, log, sum, rec, ReasonBlocked, true)
			continue
		}
		if err := e.process(ctx, log, sum, rec); err != nil {
			blocked = true
		}
	}
}

func (e *Engine) process(ctx context.Context, log *slog.Logger, sum *Summary, rec changelog.ChangeRecord) error {
	var decided decision
	for attempt := 1; ; attempt++ {
		err := e.attempt(ctx, log, sum, rec, &decided)
		if err == nil {
			if err := e.deps.Changes.MarkConfirmed(ctx, []int64{rec.ID}); err != nil {
				log.Error("failed to confirm change", "change_id", rec.ID, "error", err)
				e.markFailed(ctx, log, sum, rec, "failed to confirm: "+err.Error(), true)
				return err
			}
			sum.Confirmed++
			return nil
		}

		if isPermanent(err) {
			e.markFailed(ctx, log, sum, rec, err.Error(), false)
			return err
		}
		if ctx.Err() != nil {
			e.markFailed(ctx, log, sum, rec, "interrupted: "+ctx.Err().Error(), true)
			return err
		}
		if attempt > e.config.MaxRetries {
			log.Warn("change exhausted retries",
				"change_id", rec.ID, "attempts", attempt, "error", err)
			e.markFailed(ctx, log, sum, rec, ReasonMaxRetries, true)
			return err
		}

		if errors.Is(err, errStaleVersion) {
			log.Debug("remote version moved, reconciling again", "change_id", rec.ID)
			continue
		}

		delay := backoff(e.config.RetryBaseDelay, attempt)
		log.Warn("change attempt failed, retrying",
			"change_id", rec.ID, "attempt", attempt, "delay", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			e.markFailed(ctx, log, sum, rec, "interrupted: "+err.Error(), true)
			return err
		}
	}
}

// attempt сверяет запись с сервером и фиксирует результат
func (e *Engine) attempt(ctx context.Context, log *slog.Logger, sum *Summary, rec changelog.ChangeRecord, decided *decision) error {
	key := rec.Key()
	e.setPhase(sum, PhaseReconciling)

	base, err := e.deps.Local.KnownVersion(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read known version: %w", err)
	}

	remote, err := e.getSnapshot(ctx, key)
	if err != nil {
		return err
	}
	remoteVersion := snapshot.VersionOf(remote)

	if remoteVersion == base {
		e.setPhase(sum, PhaseCommitting)
		return e.commit(ctx, key, rec.Operation == changelog.OpDelete, rec.Payload, base)
	}

	current := snapshot.Tombstone(key, 0)
	if remote != nil {
		current = *remote
	}

	res := decided.resolve(ctx, e.deps.Resolver, rec, current, remoteVersion)
	if !res.NoDivergence() && !decided.counted {
		decided.counted = true
		sum.ConflictsResolved++
		e.notify(ctx, log, Notification{
			Tag:     TagConflictResolved,
			Title:   "Conflict resolved",
			Message: fmt.Sprintf("%s: %s wins (%s)", key, res.Winner, res.Strategy),
		})
	}

	e.setPhase(sum, PhaseCommitting)
	if res.Winner == conflict.SideRemote {
		if err := e.applyLocal(ctx, key, res.Deleted, res.Payload); err != nil {
			return err
		}
		return e.setKnown(ctx, key, remoteVersion)
	}

	if err := e.commit(ctx, key, res.Deleted, res.Payload, remoteVersion); err != nil {
		return err
	}
	if res.Winner == conflict.SideMerged {
		return e.applyLocal(ctx, key, res.Deleted, res.Payload)
	}
	return nil
}

// decision решение по конфликту одной записи. Повторные попытки против той же
// версии сервера используют его, не вызывая Resolver и не дублируя аудит.
type decision struct {
	res           *conflict.Resolution
	remoteVersion int64
	counted       bool
}

func (d *decision) resolve(ctx context.Context, resolver Resolver, rec changelog.ChangeRecord, remote snapshot.Snapshot, remoteVersion int64) conflict.Resolution {
	if d.res != nil && d.remoteVersion == remoteVersion {
		return *d.res
	}
	res := resolver.Resolve(ctx, rec, remote)
	d.res = &res
	d.remoteVersion = remoteVersion
	return res
}

// commit выполняет условную запись и запоминает новую версию
func (e *Engine) commit(ctx context.Context, key snapshot.Key, deleted bool, payload json.RawMessage, expected int64) error {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	var (
		result snapshot.PutResult
		err    error
		op     = "put"
	)
	if deleted {
		op = "delete"
		result, err = e.deps.Remote.DeleteSnapshot(callCtx, key, expected)
	} else {
		result, err = e.deps.Remote.PutSnapshot(callCtx, key, payload, expected)
	}
	if err != nil {
		return classify(op, err)
	}
	if !result.Accepted {
		return errStaleVersion
	}

	return e.setKnown(ctx, key, result.Version)
}

func (e *Engine) getSnapshot(ctx context.Context, key snapshot.Key) (*snapshot.Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	snap, err := e.deps.Remote.GetSnapshot(callCtx, key)
	if err != nil {
		return nil, classify("get", err)
	}
	return snap, nil
}

func (e *Engine) applyLocal(ctx context.Context, key snapshot.Key, deleted bool, payload json.RawMessage) error {
	op := changelog.OpUpdate
	if deleted {
		op = changelog.OpDelete
	}
	if err := e.deps.Local.Apply(ctx, key, op, payload); err != nil {
		return fmt.Errorf("failed to apply resolution locally: %w", err)
	}
	return nil
}

func (e *Engine) setKnown(ctx context.Context, key snapshot.Key, version int64) error {
	if err := e.deps.Local.SetKnownVersion(ctx, key, version); err != nil {
		return fmt.Errorf("failed to store known version: %w", err)
	}
	return nil
}

// markFailed фиксирует неудачу записи. Учетные записи пишутся и после отмены контекста.
func (e *Engine) markFailed(ctx context.Context, log *slog.Logger, sum *Summary, rec changelog.ChangeRecord, reason string, retryable bool) {
	bookkeeping := context.WithoutCancel(ctx)

	var err error
	if retryable {
		err = e.deps.Changes.MarkFailed(bookkeeping, []int64{rec.ID}, reason)
	} else {
		err = e.deps.Changes.MarkFailedPermanently(bookkeeping, []int64{rec.ID}, reason)
	}
	if err != nil {
		log.Error("failed to mark change failed", "change_id", rec.ID, "error", err)
	}

	failure := RecordError{
		ChangeID:  rec.ID,
		Entity:    rec.Key().String(),
		Reason:    reason,
		Retryable: retryable,
	}
	sum.Failed++
	sum.Errors = append(sum.Errors, failure)
	e.deps.Observer.RecordFailed(bookkeeping, failure)
}

func (e *Engine) fail(ctx context.Context, log *slog.Logger, sum *Summary, cause error) (*Summary, error) {
	e.setPhase(sum, PhaseFailed)
	sum.Status = StatusFailed
	sum.Err = cause.Error()
	sum.FinishedAt = e.now().UTC()

	log.Error("sync session failed", "error", cause)
	e.finish(ctx, log, sum)
	return copySummary(sum), cause
}

// finish публикует итог: память процесса, история, наблюдатель, уведомление
func (e *Engine) finish(ctx context.Context, log *slog.Logger, sum *Summary) {
	e.last.Store(copySummary(sum))
	bookkeeping := context.WithoutCancel(ctx)

	if e.deps.Sessions != nil {
		if err := e.deps.Sessions.SaveSession(bookkeeping, sum); err != nil {
			log.Error("failed to save sync session", "error", err)
		}
	}

	e.deps.Observer.SessionFinished(bookkeeping, *copySummary(sum))

	switch {
	case sum.Status == StatusFailed:
		e.notify(bookkeeping, log, Notification{
			Tag:     TagSyncError,
			Title:   "Sync failed",
			Message: sum.Err,
		})
	case sum.Failed > 0:
		e.notify(bookkeeping, log, Notification{
			Tag:     TagSyncError,
			Title:   "Sync completed with errors",
			Message: fmt.Sprintf("%d of %d changes failed", sum.Failed, sum.RecordsProcessed),
		})
	case sum.RecordsProcessed > 0:
		e.notify(bookkeeping, log, Notification{
			Tag:     TagSyncComplete,
			Title:   "Sync completed",
			Message: fmt.Sprintf("%d changes synchronized", sum.Confirmed),
		})
	}
}

func (e *Engine) notify(ctx context.Context, log *slog.Logger, n Notification) {
	if err := e.deps.Notifier.Notify(ctx, n); err != nil {
		log.Debug("notification dropped", "tag", n.Tag, "error", err)
	}
}

func (e *Engine) setPhase(sum *Summary, phase Phase) {
	if sum.Phase == phase {
		return
	}
	sum.Phase = phase
	e.phase.Store(phase)
}

// groupByEntity группирует записи по сущности, сохраняя порядок id внутри группы
func groupByEntity(records []changelog.ChangeRecord) [][]changelog.ChangeRecord {
	index := make(map[snapshot.Key]int)
	var groups [][]changelog.ChangeRecord
	for _, rec := range records {
		key := rec.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], rec)
	}
	return groups
}

func copySummary(s *Summary) *Summary {
	cp := *s
	cp.Errors = append([]RecordError(nil), s.Errors...)
	return &cp
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
