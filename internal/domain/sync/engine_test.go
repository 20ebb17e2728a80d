package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/conflict"
	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/domain/state"
	syncdomain "scoutsync/internal/domain/sync"
	"scoutsync/internal/infrastructure/lock"
	"scoutsync/internal/infrastructure/storage/memory"
)

type write struct {
	Key      snapshot.Key
	Payload  string
	Deleted  bool
	Expected int64
}

// fakeRemote оборачивает настоящий snapshot.Service и позволяет
// подставлять ошибки и задержки
type fakeRemote struct {
	inner *snapshot.Service

	mu        sync.Mutex
	writes    []write
	gets      map[snapshot.Key]int
	getErr    map[snapshot.Key]error
	putErr    map[snapshot.Key]error
	hang      map[snapshot.Key]bool
	beforePut func(key snapshot.Key)

	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		inner:  snapshot.NewService(memory.NewSnapshotRepository(), slog.Default()),
		gets:   make(map[snapshot.Key]int),
		getErr: make(map[snapshot.Key]error),
		putErr: make(map[snapshot.Key]error),
		hang:   make(map[snapshot.Key]bool),
	}
}

func (f *fakeRemote) GetSnapshot(ctx context.Context, key snapshot.Key) (*snapshot.Snapshot, error) {
	f.mu.Lock()
	f.gets[key]++
	err := f.getErr[key]
	hang := f.hang[key]
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return nil, err
	}
	return f.inner.GetSnapshot(ctx, key)
}

func (f *fakeRemote) PutSnapshot(ctx context.Context, key snapshot.Key, payload json.RawMessage, expected int64) (snapshot.PutResult, error) {
	if err := f.hook(key); err != nil {
		return snapshot.PutResult{}, err
	}
	res, err := f.inner.PutSnapshot(ctx, key, payload, expected)
	if err == nil && res.Accepted {
		f.record(write{Key: key, Payload: string(payload), Expected: expected})
	}
	return res, err
}

func (f *fakeRemote) DeleteSnapshot(ctx context.Context, key snapshot.Key, expected int64) (snapshot.PutResult, error) {
	if err := f.hook(key); err != nil {
		return snapshot.PutResult{}, err
	}
	res, err := f.inner.DeleteSnapshot(ctx, key, expected)
	if err == nil && res.Accepted {
		f.record(write{Key: key, Deleted: true, Expected: expected})
	}
	return res, err
}

func (f *fakeRemote) hook(key snapshot.Key) error {
	f.mu.Lock()
	before := f.beforePut
	f.beforePut = nil
	err := f.putErr[key]
	delete(f.putErr, key)
	f.mu.Unlock()

	if before != nil {
		before(key)
	}
	return err
}

func (f *fakeRemote) record(w write) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, w)
}

func (f *fakeRemote) Writes() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func (f *fakeRemote) Gets(key snapshot.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[key]
}

// otherDevice пишет на сервер от имени другого устройства
func (f *fakeRemote) otherDevice(t *testing.T, key snapshot.Key, payload string) int64 {
	t.Helper()
	ctx := snapshot.WithDevice(context.Background(), "other-device")
	current, err := f.inner.GetSnapshot(ctx, key)
	require.NoError(t, err)
	res, err := f.inner.PutSnapshot(ctx, key, json.RawMessage(payload), snapshot.VersionOf(current))
	require.NoError(t, err)
	require.True(t, res.Accepted)
	return res.Version
}

type fakeConn struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

func (c *fakeConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) Changes() <-chan bool { return c.changes }

func (c *fakeConn) Set(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()
	if c.changes != nil {
		c.changes <- online
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []syncdomain.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg syncdomain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) Tags() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	tags := make([]string, 0, len(n.sent))
	for _, msg := range n.sent {
		tags = append(tags, msg.Tag)
	}
	return tags
}

type recordingObserver struct {
	mu       sync.Mutex
	sessions []syncdomain.Summary
	failures []syncdomain.RecordError
}

func (o *recordingObserver) SessionFinished(_ context.Context, s syncdomain.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions = append(o.sessions, s)
}

func (o *recordingObserver) RecordFailed(_ context.Context, f syncdomain.RecordError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, f)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type harness struct {
	changes  *changelog.Service
	changeDB *memory.ChangeLogRepository
	state    *state.Service
	remote   *fakeRemote
	audit    *memory.AuditRepository
	sessions *memory.SessionRepository
	conn     *fakeConn
	notifier *recordingNotifier
	observer *recordingObserver
	resolver *conflict.Service
	engine   *syncdomain.Engine
}

func newHarness(t *testing.T, localTime time.Time, strategy conflict.Strategy) *harness {
	t.Helper()
	log := slog.Default()

	validator, err := changelog.NewValidator()
	require.NoError(t, err)

	h := &harness{
		changeDB: memory.NewChangeLogRepository(),
		state:    state.NewService(memory.NewStateRepository(), log),
		remote:   newFakeRemote(),
		audit:    memory.NewAuditRepository(),
		sessions: memory.NewSessionRepository(),
		conn:     &fakeConn{online: true},
		notifier: &recordingNotifier{},
		observer: &recordingObserver{},
	}
	clock := &testClock{now: localTime}
	h.changes = changelog.NewService(h.changeDB, validator, h.state, log,
		&changelog.Config{Retention: 24 * time.Hour, Clock: clock.Now})
	h.resolver = conflict.NewService(strategy, h.audit, log)

	h.engine = h.newEngine(&syncdomain.Config{
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		CallTimeout:    time.Second,
	}, nil)
	return h
}

// newEngine еще один движок над теми же хранилищами, как у второго процесса клиента
func (h *harness) newEngine(cfg *syncdomain.Config, lock syncdomain.SessionLock) *syncdomain.Engine {
	return syncdomain.NewEngine(syncdomain.Dependencies{
		Changes:      h.changes,
		Remote:       h.remote,
		Local:        h.state,
		Resolver:     h.resolver,
		Connectivity: h.conn,
		Notifier:     h.notifier,
		Observer:     h.observer,
		Sessions:     h.sessions,
		Lock:         lock,
	}, cfg, slog.Default())
}

// mutate повторяет client.App.Mutate: запись в журнал и применение локально
func (h *harness) mutate(t *testing.T, key snapshot.Key, op changelog.Operation, payload string) *changelog.ChangeRecord {
	t.Helper()
	ctx := context.Background()
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	rec, err := h.changes.Append(ctx, key.Type, key.ID, op, raw)
	require.NoError(t, err)
	require.NoError(t, h.state.Apply(ctx, key, op, raw))
	return rec
}

func (h *harness) record(t *testing.T, id int64) *changelog.ChangeRecord {
	t.Helper()
	rec, err := h.changes.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

var past = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEngine_OfflineAppendThenSync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-12"}

	h.conn.online = false
	c1 := h.mutate(t, key, changelog.OpCreate, `{"name":"Cabin 12"}`)
	c2 := h.mutate(t, key, changelog.OpUpdate, `{"name":"Cabin 12","capacity":30}`)
	c3 := h.mutate(t, key, changelog.OpUpdate, `{"name":"Cabin 12","capacity":35}`)

	sum, err := h.engine.Run(ctx)
	assert.ErrorIs(t, err, syncdomain.ErrOffline)
	require.NotNil(t, sum)
	assert.Equal(t, syncdomain.StatusFailed, sum.Status)
	assert.Empty(t, h.remote.Writes())
	assert.Equal(t, []string{syncdomain.TagSyncError}, h.notifier.Tags())

	h.conn.online = true
	sum, err = h.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, syncdomain.StatusCompleted, sum.Status)
	assert.Equal(t, syncdomain.PhaseCompleted, sum.Phase)
	assert.Equal(t, 3, sum.RecordsProcessed)
	assert.Equal(t, 3, sum.Confirmed)
	assert.Zero(t, sum.ConflictsResolved)
	assert.Empty(t, sum.Errors)

	writes := h.remote.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, `{"name":"Cabin 12"}`, writes[0].Payload)
	assert.Equal(t, `{"name":"Cabin 12","capacity":30}`, writes[1].Payload)
	assert.Equal(t, `{"name":"Cabin 12","capacity":35}`, writes[2].Payload)
	assert.Equal(t, []int64{0, 1, 2}, []int64{writes[0].Expected, writes[1].Expected, writes[2].Expected})

	for _, rec := range []*changelog.ChangeRecord{c1, c2, c3} {
		assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)
	}

	known, err := h.state.KnownVersion(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), known)

	last, err := h.engine.LastSessionSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, sum.ID, last.ID)
	assert.Equal(t, syncdomain.PhaseIdle, h.engine.Phase())
	assert.False(t, h.engine.IsRunning())
}

func TestEngine_RemoteNewerWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-7"}

	// локальная копия синхронизирована с версией 1
	v1 := h.remote.otherDevice(t, key, `{"name":"Cabin 7"}`)
	require.NoError(t, h.state.Apply(ctx, key, changelog.OpCreate, json.RawMessage(`{"name":"Cabin 7"}`)))
	require.NoError(t, h.state.SetKnownVersion(ctx, key, v1))

	rec := h.mutate(t, key, changelog.OpUpdate, `{"name":"Cabin 7","capacity":12}`)
	assert.Equal(t, v1, rec.BaseVersion)

	// другое устройство успело записать позже
	h.remote.otherDevice(t, key, `{"name":"Cabin 7 (renovated)"}`)

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, 1, sum.ConflictsResolved)
	assert.Empty(t, h.remote.Writes(), "remote winner needs no write")
	assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)

	local, err := h.state.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Cabin 7 (renovated)"}`, string(local.Payload))

	entries, err := h.audit.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, conflict.SideRemote, entries[0].Winner)
	assert.Equal(t, conflict.LastWriteWins, entries[0].Strategy)
	assert.JSONEq(t, `{"name":"Cabin 7","capacity":12}`, string(entries[0].DiscardedPayload))
	assert.Contains(t, h.notifier.Tags(), syncdomain.TagConflictResolved)
}

func TestEngine_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	broken := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-9"}
	healthy := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-10"}

	bad := h.mutate(t, broken, changelog.OpCreate, `{"name":"Cabin 9"}`)
	good := h.mutate(t, healthy, changelog.OpCreate, `{"name":"Cabin 10"}`)

	h.remote.getErr[broken] = &snapshot.TransportError{Op: "get", Err: errors.New("connection reset")}

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, syncdomain.StatusCompleted, sum.Status)
	assert.Equal(t, 4, h.remote.Gets(broken), "one attempt plus three retries")
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, bad.ID, sum.Errors[0].ChangeID)
	assert.Equal(t, syncdomain.ReasonMaxRetries, sum.Errors[0].Reason)
	assert.True(t, sum.Errors[0].Retryable)

	failed := h.record(t, bad.ID)
	assert.Equal(t, changelog.StateFailed, failed.SyncState)
	assert.Equal(t, syncdomain.ReasonMaxRetries, failed.FailureReason)
	assert.Equal(t, changelog.StateConfirmed, h.record(t, good.ID).SyncState)

	require.Len(t, h.observer.failures, 1)
	assert.Contains(t, h.notifier.Tags(), syncdomain.TagSyncError)

	// следующая сессия повторяет отложенную запись
	delete(h.remote.getErr, broken)
	sum, err = h.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, changelog.StateConfirmed, h.record(t, bad.ID).SyncState)
}

func TestEngine_PermanentFailureBlocksLaterChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-3"}
	other := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-4"}

	first := h.mutate(t, key, changelog.OpCreate, `{"name":"Cabin 3"}`)
	second := h.mutate(t, key, changelog.OpUpdate, `{"name":"Cabin 3 bis"}`)
	unrelated := h.mutate(t, other, changelog.OpCreate, `{"name":"Cabin 4"}`)

	h.remote.putErr[key] = snapshot.ErrInvalidPayload

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.RecordsProcessed)
	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, 2, sum.Failed)

	rec := h.record(t, first.ID)
	assert.Equal(t, changelog.StateFailed, rec.SyncState)
	assert.False(t, rec.Retryable)

	rec = h.record(t, second.ID)
	assert.Equal(t, changelog.StateFailed, rec.SyncState)
	assert.Equal(t, syncdomain.ReasonBlocked, rec.FailureReason)
	assert.True(t, rec.Retryable)

	assert.Equal(t, changelog.StateConfirmed, h.record(t, unrelated.ID).SyncState)

	// нет ни одной записи cabin-3 на сервере, порядок не нарушен
	for _, w := range h.remote.Writes() {
		assert.NotEqual(t, key, w.Key)
	}

	// окончательно отклоненная запись пропускается, но остается в pending()
	pending, err := h.changes.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	sum, err = h.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.RecordsProcessed)
}

func TestEngine_StaleVersionReconciles(t *testing.T) {
	ctx := context.Background()
	future := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHarness(t, future, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-5"}

	rec := h.mutate(t, key, changelog.OpCreate, `{"name":"Cabin 5 local"}`)

	// другое устройство создает сущность между чтением и записью
	h.remote.beforePut = func(k snapshot.Key) {
		h.remote.otherDevice(t, k, `{"name":"Cabin 5 remote"}`)
	}

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, 1, sum.ConflictsResolved)
	assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)

	remote, err := h.remote.inner.GetSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remote.Version)
	assert.JSONEq(t, `{"name":"Cabin 5 local"}`, string(remote.Payload))
}

func TestEngine_DeleteAndFieldMerge(t *testing.T) {
	ctx := context.Background()

	t.Run("local delete reaches remote as tombstone", func(t *testing.T) {
		h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
		key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-1"}

		h.mutate(t, key, changelog.OpCreate, `{"name":"Cabin 1"}`)
		h.mutate(t, key, changelog.OpDelete, "")

		sum, err := h.engine.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Confirmed)

		remote, err := h.remote.inner.GetSnapshot(ctx, key)
		require.NoError(t, err)
		assert.True(t, remote.Deleted)
		assert.Equal(t, int64(2), remote.Version)
	})

	t.Run("field merge writes merged payload on both sides", func(t *testing.T) {
		future := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
		h := newHarness(t, future, conflict.FieldMergeStrategy{})
		key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-2"}

		v1 := h.remote.otherDevice(t, key, `{"name":"Cabin 2"}`)
		require.NoError(t, h.state.SetKnownVersion(ctx, key, v1))
		h.mutate(t, key, changelog.OpUpdate, `{"name":"Cabin 2","capacity":20}`)
		h.remote.otherDevice(t, key, `{"name":"Cabin 2","region":"Toscana"}`)

		sum, err := h.engine.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.ConflictsResolved)

		remote, err := h.remote.inner.GetSnapshot(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Cabin 2","capacity":20,"region":"Toscana"}`, string(remote.Payload))

		local, err := h.state.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, string(remote.Payload), string(local.Payload))
	})
}

func TestEngine_RecoversInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: "preference", ID: "theme"}

	rec := h.mutate(t, key, changelog.OpCreate, `{"value":"dark"}`)
	// прерванная сессия оставила запись захваченной
	require.NoError(t, h.changes.MarkInFlight(ctx, []int64{rec.ID}))

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)
}

func TestEngine_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	h.mutate(t, snapshot.Key{Type: "preference", ID: "lang"}, changelog.OpCreate, `{"value":"it"}`)

	h.remote.entered = make(chan struct{})
	h.remote.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.engine.Run(ctx)
	}()

	<-h.remote.entered
	assert.True(t, h.engine.IsRunning())
	assert.Equal(t, syncdomain.PhaseReconciling, h.engine.Phase())

	sum, err := h.engine.Run(ctx)
	assert.Nil(t, sum)
	assert.ErrorIs(t, err, syncdomain.ErrSessionRunning)

	close(h.remote.release)
	<-done

	sessions, err := h.sessions.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestEngine_NotifierFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	h.notifier.err = errors.New("permission denied")

	rec := h.mutate(t, snapshot.Key{Type: "preference", ID: "lang"}, changelog.OpCreate, `{"value":"it"}`)

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)
	assert.Equal(t, []string{syncdomain.TagSyncComplete}, h.notifier.Tags())
}

func TestEngine_LastSessionSummaryFromHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})

	_, err := h.engine.LastSessionSummary(ctx)
	assert.ErrorIs(t, err, syncdomain.ErrSessionNotFound)

	require.NoError(t, h.sessions.SaveSession(ctx, &syncdomain.Summary{ID: "previous", Status: syncdomain.StatusCompleted}))

	last, err := h.engine.LastSessionSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "previous", last.ID)
}

func TestEngine_CallTimeoutIsRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-11"}

	rec := h.mutate(t, key, changelog.OpCreate, `{"name":"Cabin 11"}`)
	h.remote.hang[key] = true

	engine := h.newEngine(&syncdomain.Config{
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		CallTimeout:    20 * time.Millisecond,
	}, nil)

	sum, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, h.remote.Gets(key), "each timed out call is retried")
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, syncdomain.ReasonMaxRetries, sum.Errors[0].Reason)
	assert.True(t, sum.Errors[0].Retryable)

	failed := h.record(t, rec.ID)
	assert.Equal(t, changelog.StateFailed, failed.SyncState)
	assert.True(t, failed.Retryable)
}

func TestEngine_ConflictResolvedOncePerRecord(t *testing.T) {
	ctx := context.Background()
	future := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHarness(t, future, conflict.LastWriteWinsStrategy{})
	key := snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-14"}

	h.remote.otherDevice(t, key, `{"name":"Cabin 14 remote"}`)
	rec := h.mutate(t, key, changelog.OpCreate, `{"name":"Cabin 14 local"}`)

	// первая условная запись обрывается, повтор идет против той же версии
	h.remote.putErr[key] = &snapshot.TransportError{Op: "put", Err: errors.New("connection reset")}

	sum, err := h.engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, 1, sum.ConflictsResolved)
	assert.Equal(t, 2, h.remote.Gets(key))
	assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)

	audit, err := h.audit.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, audit, 1, "retry reuses the decision")
	assert.Equal(t, rec.ID, audit[0].ChangeID)
	assert.Equal(t, conflict.SideLocal, audit[0].Winner)

	remote, err := h.remote.inner.GetSnapshot(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Cabin 14 local"}`, string(remote.Payload))
}

func TestEngine_SessionLockSharedBetweenProcesses(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	path := filepath.Join(t.TempDir(), "scoutsync.lock")
	cfg := &syncdomain.Config{MaxRetries: 3, RetryBaseDelay: time.Millisecond, CallTimeout: time.Second}

	daemon := h.newEngine(cfg, lock.NewFileLock(path))
	cli := h.newEngine(cfg, lock.NewFileLock(path))

	rec := h.mutate(t, snapshot.Key{Type: "preference", ID: "lang"}, changelog.OpCreate, `{"value":"it"}`)

	h.remote.entered = make(chan struct{})
	h.remote.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = daemon.Run(ctx)
	}()
	<-h.remote.entered

	assert.True(t, cli.IsRunning())
	assert.Equal(t, changelog.StateInFlight, h.record(t, rec.ID).SyncState)

	sum, err := cli.Run(ctx)
	assert.Nil(t, sum)
	assert.ErrorIs(t, err, syncdomain.ErrSessionRunning)

	recovered, err := cli.RecoverInFlight(ctx)
	assert.ErrorIs(t, err, syncdomain.ErrSessionRunning)
	assert.Zero(t, recovered)
	assert.Equal(t, changelog.StateInFlight, h.record(t, rec.ID).SyncState, "claims of a live session stay put")

	close(h.remote.release)
	<-done

	assert.False(t, cli.IsRunning())
	assert.Equal(t, changelog.StateConfirmed, h.record(t, rec.ID).SyncState)

	release, ok, err := cli.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, daemon.IsRunning(), "held by the other engine")
	_, err = daemon.Run(ctx)
	assert.ErrorIs(t, err, syncdomain.ErrSessionRunning)
	release()
	assert.False(t, daemon.IsRunning())
}
