package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/infrastructure/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.Default()
	mux := New(Services{
		Snapshots: snapshot.NewService(memory.NewSnapshotRepository(), log),
		Backups:   backup.NewArchive(memory.NewArchiveRepository(), 3, log),
	}, log)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, deviceID string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_SnapshotLifecycle(t *testing.T) {
	srv := newTestServer(t)
	path := "/api/v1/snapshots/structure/cabin-1"

	resp := do(t, srv, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "device header is required")

	resp = do(t, srv, http.MethodGet, path, "device-a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, path, "device-a", map[string]interface{}{
		"payload":          map[string]string{"name": "Cabin"},
		"expected_version": 0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result snapshot.PutResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, snapshot.PutResult{Accepted: true, Version: 1}, result)

	resp = do(t, srv, http.MethodPut, path, "device-b", map[string]interface{}{
		"payload":          map[string]string{"name": "Stale"},
		"expected_version": 0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, snapshot.PutResult{Accepted: false, Version: 1}, result)

	resp = do(t, srv, http.MethodPut, path, "device-a", map[string]interface{}{
		"payload":          "not an object",
		"expected_version": 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, path, "device-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap snapshot.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "device-a", snap.LastModifiedBy)
	assert.JSONEq(t, `{"name":"Cabin"}`, string(snap.Payload))

	resp = do(t, srv, http.MethodDelete, path+"?expected_version=1", "device-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, snapshot.PutResult{Accepted: true, Version: 2}, result)

	resp = do(t, srv, http.MethodGet, path, "device-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.True(t, snap.Deleted)
	assert.Equal(t, int64(2), snap.Version)
}

func TestNew_SchemaNamesArePackageQualified(t *testing.T) {
	var mux http.Handler
	require.NotPanics(t, func() {
		mux = New(Services{}, slog.Default())
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp := do(t, srv, http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Components struct {
			Schemas map[string]json.RawMessage `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.Components.Schemas, "BackupSnapshot")
	assert.Contains(t, doc.Components.Schemas, "SnapshotSnapshot")
}

func TestSchemaNamer(t *testing.T) {
	assert.Equal(t, "BackupSnapshot", schemaNamer(reflect.TypeOf(backup.Snapshot{}), ""))
	assert.Equal(t, "SnapshotSnapshot", schemaNamer(reflect.TypeOf(&snapshot.Snapshot{}), ""))
	assert.Equal(t, "String", schemaNamer(reflect.TypeOf(""), "hint"))
	assert.Equal(t, "Body", schemaNamer(reflect.TypeOf(struct{}{}), "Body"))
}
