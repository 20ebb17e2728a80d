package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/conflict"
	"scoutsync/internal/domain/snapshot"
	syncdomain "scoutsync/internal/domain/sync"
)

func TestScheduler_SecondRequestDuringSessionIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	h.mutate(t, snapshot.Key{Type: changelog.EntityStructure, ID: "cabin-12"}, changelog.OpCreate, `{"name":"Cabin 12"}`)

	h.remote.entered = make(chan struct{})
	h.remote.release = make(chan struct{})

	scheduler := syncdomain.NewScheduler(h.engine, nil, time.Hour, slog.Default())

	type result struct {
		sum     *syncdomain.Summary
		started bool
	}
	first := make(chan result, 1)
	go func() {
		sum, started := scheduler.RequestSync(ctx)
		first <- result{sum: sum, started: started}
	}()

	// сессия в фазе сверки
	<-h.remote.entered
	assert.Equal(t, syncdomain.PhaseReconciling, h.engine.Phase())

	sum, started := scheduler.RequestSync(ctx)
	assert.False(t, started)
	assert.Nil(t, sum)
	sum, started = scheduler.RequestSync(ctx)
	assert.False(t, started)
	assert.Nil(t, sum)

	close(h.remote.release)
	res := <-first
	require.True(t, res.started)
	require.NotNil(t, res.sum)

	assert.Equal(t, int64(1), scheduler.SessionsStarted())

	last, err := h.engine.LastSessionSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.sum.ID, last.ID)
	assert.Equal(t, 1, last.RecordsProcessed)

	sessions, err := h.sessions.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestScheduler_ConnectivityTransitionTriggersSync(t *testing.T) {
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	h.conn.online = false
	h.conn.changes = make(chan bool)
	rec := h.mutate(t, snapshot.Key{Type: "preference", ID: "theme"}, changelog.OpUpdate, `{"value":"dark"}`)

	scheduler := syncdomain.NewScheduler(h.engine, h.conn, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	h.conn.Set(true)

	assert.Eventually(t, func() bool {
		return scheduler.SessionsStarted() == 1 && !h.engine.IsRunning()
	}, 2*time.Second, 10*time.Millisecond)

	got, err := h.changes.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, changelog.StateConfirmed, got.SyncState)

	// переход в offline сессию не запускает
	h.conn.Set(false)
	assert.Equal(t, int64(1), scheduler.SessionsStarted())

	cancel()
	assert.NoError(t, <-done)
}

func TestScheduler_IntervalTrigger(t *testing.T) {
	h := newHarness(t, past, conflict.LastWriteWinsStrategy{})
	scheduler := syncdomain.NewScheduler(h.engine, nil, 20*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return scheduler.SessionsStarted() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
