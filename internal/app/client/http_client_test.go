package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"scoutsync/internal/app/client/config"
	"scoutsync/internal/app/server/api"
	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/domain/state"
	"scoutsync/internal/infrastructure/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.Default()
	srv := httptest.NewServer(api.New(api.Services{
		Snapshots: snapshot.NewService(memory.NewSnapshotRepository(), log),
		Backups:   backup.NewArchive(memory.NewArchiveRepository(), 5, log),
	}, log))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, serverURL, deviceID string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:           "local",
		ServerAddress: serverURL,
		ConfigDir:     dir,
		DataPath:      dir + "/scoutsync.db",
		DeviceID:      deviceID,
		AppVersion:    "test",
		Sync: config.Sync{
			Interval:       time.Hour,
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
			CallTimeout:    2 * time.Second,
		},
		Conflict:     "last-write-wins",
		Changelog:    config.Changelog{Retention: time.Hour},
		Backup:       config.Backup{Interval: time.Hour, Retention: 3, Destination: backup.DestinationLocal},
		Connectivity: config.Connectivity{ProbeInterval: time.Second},
		Notify:       config.Notify{Rate: 10, Burst: 10},
	}
}

func TestHTTPClient_Snapshots(t *testing.T) {
	srv := newTestServer(t)
	client := NewHTTPClient(testConfig(t, srv.URL, "device-a"), slog.Default())
	ctx := context.Background()
	key := snapshot.Key{Type: "structure", ID: "base-42"}

	require.NoError(t, client.HealthCheck(ctx))

	snap, err := client.GetSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, snap, "unknown entity is not an error")

	res, err := client.PutSnapshot(ctx, key, json.RawMessage(`{"name":"Base Scout"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, snapshot.PutResult{Accepted: true, Version: 1}, res)

	res, err = client.PutSnapshot(ctx, key, json.RawMessage(`{"name":"Stale"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, snapshot.PutResult{Accepted: false, Version: 1}, res)

	snap, err = client.GetSnapshot(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.Version)
	assert.JSONEq(t, `{"name":"Base Scout"}`, string(snap.Payload))
	assert.Equal(t, "device-a", snap.LastModifiedBy)

	_, err = client.PutSnapshot(ctx, key, json.RawMessage(`[1,2]`), 1)
	assert.ErrorIs(t, err, snapshot.ErrInvalidPayload)
	assert.False(t, snapshot.IsTransport(err))

	res, err = client.DeleteSnapshot(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, snapshot.PutResult{Accepted: true, Version: 2}, res)

	snap, err = client.GetSnapshot(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Deleted)
}

func TestHTTPClient_Backups(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	a := NewHTTPClient(testConfig(t, srv.URL, "device-a"), slog.Default())
	b := NewHTTPClient(testConfig(t, srv.URL, "device-b"), slog.Default())

	_, err := a.GetBackup(ctx, "missing")
	assert.ErrorIs(t, err, backup.ErrNotFound)

	log := slog.Default()
	snapshotter := backup.NewSnapshotter(state.NewService(memory.NewStateRepository(), log), nil, nil,
		memory.NewBackupRepository(), nil, log, nil)
	snap, err := snapshotter.Build(ctx, backup.KindManual)
	require.NoError(t, err)
	snap.ID = "bk-1"

	tampered := *snap
	tampered.ID = "bk-bad"
	tampered.Checksum = "00"
	assert.ErrorIs(t, a.PutBackup(ctx, &tampered), backup.ErrInvalidBackup)

	require.NoError(t, a.PutBackup(ctx, snap))

	got, err := a.GetBackup(ctx, "bk-1")
	require.NoError(t, err)
	assert.JSONEq(t, string(snap.Payload), string(got.Payload))
	assert.Equal(t, snap.Checksum, got.Checksum)

	list, err := a.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bk-1", list[0].ID)
	assert.Empty(t, list[0].Payload)

	_, err = b.GetBackup(ctx, "bk-1")
	assert.ErrorIs(t, err, backup.ErrNotFound, "backups are scoped per device")
}

func TestHTTPClient_TransportErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	client := NewHTTPClient(testConfig(t, failing.URL, "device-a"), slog.Default())
	_, err := client.PutSnapshot(context.Background(), snapshot.Key{Type: "structure", ID: "x"}, json.RawMessage(`{}`), 0)
	assert.True(t, snapshot.IsTransport(err), "5xx is retryable")

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()

	client = NewHTTPClient(testConfig(t, url, "device-a"), slog.Default())
	_, err = client.GetSnapshot(context.Background(), snapshot.Key{Type: "structure", ID: "x"})
	assert.True(t, snapshot.IsTransport(err))
	assert.Error(t, client.HealthCheck(context.Background()))
}
