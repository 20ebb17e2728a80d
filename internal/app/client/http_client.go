package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"scoutsync/internal/app/client/config"
	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/snapshot"
)

const deviceHeader = "X-Device-ID"

// errNotFound сервер ответил 404
var errNotFound = errors.New("not found")

// httpClient удаленное хранилище поверх HTTP API сервера.
// Реализует sync.RemoteStore и backup.RemoteStore.
type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	deviceID  string
	userAgent string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) *httpClient {
	client := &http.Client{
		// Таймаут отдельного вызова задает движок синхронизации через контекст
		Timeout: 2 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &httpClient{
		client:    client,
		log:       log.With("component", "http_client"),
		baseURL:   cfg.BaseURL(),
		deviceID:  cfg.DeviceID,
		userAgent: "ScoutSync-Client/" + cfg.AppVersion,
	}
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func (h *httpClient) GetSnapshot(ctx context.Context, key snapshot.Key) (*snapshot.Snapshot, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, snapshotPath(key), nil)
	if err != nil {
		return nil, transport("get snapshot", err)
	}

	var snap snapshot.Snapshot
	if err := h.parseResponse(resp, &snap); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, h.classify("get snapshot", err)
	}
	return &snap, nil
}

func (h *httpClient) PutSnapshot(ctx context.Context, key snapshot.Key, payload json.RawMessage, expectedVersion int64) (snapshot.PutResult, error) {
	body := struct {
		Payload         json.RawMessage `json:"payload"`
		ExpectedVersion int64           `json:"expected_version"`
	}{Payload: payload, ExpectedVersion: expectedVersion}

	resp, err := h.doRequest(ctx, http.MethodPut, snapshotPath(key), body)
	if err != nil {
		return snapshot.PutResult{}, transport("put snapshot", err)
	}

	var result snapshot.PutResult
	if err := h.parseResponse(resp, &result); err != nil {
		return snapshot.PutResult{}, h.classify("put snapshot", err)
	}
	return result, nil
}

func (h *httpClient) DeleteSnapshot(ctx context.Context, key snapshot.Key, expectedVersion int64) (snapshot.PutResult, error) {
	path := snapshotPath(key) + "?expected_version=" + strconv.FormatInt(expectedVersion, 10)

	resp, err := h.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return snapshot.PutResult{}, transport("delete snapshot", err)
	}

	var result snapshot.PutResult
	if err := h.parseResponse(resp, &result); err != nil {
		return snapshot.PutResult{}, h.classify("delete snapshot", err)
	}
	return result, nil
}

func (h *httpClient) PutBackup(ctx context.Context, snap *backup.Snapshot) error {
	resp, err := h.doRequest(ctx, http.MethodPut, "/api/v1/backups/"+url.PathEscape(snap.ID), snap)
	if err != nil {
		return transport("put backup", err)
	}
	if err := h.parseResponse(resp, nil); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Status == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", backup.ErrInvalidBackup, se.Message)
		}
		return h.classify("put backup", err)
	}
	return nil
}

func (h *httpClient) GetBackup(ctx context.Context, id string) (*backup.Snapshot, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/backups/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, transport("get backup", err)
	}

	var snap backup.Snapshot
	if err := h.parseResponse(resp, &snap); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, backup.ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}

// ListBackups копии этого устройства на сервере, без содержимого
func (h *httpClient) ListBackups(ctx context.Context) ([]backup.Snapshot, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/backups", nil)
	if err != nil {
		return nil, transport("list backups", err)
	}

	var list struct {
		Backups []backup.Snapshot `json:"backups"`
	}
	if err := h.parseResponse(resp, &list); err != nil {
		return nil, err
	}
	return list.Backups, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set(deviceHeader, h.deviceID)

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

// statusError ответ сервера с кодом ошибки
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ошибка сервера: %s (статус %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
}

func (h *httpClient) parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &snapshot.TransportError{Op: "read response", Err: err}
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if resp.StatusCode >= 400 {
		// huma отвечает problem+json с полем detail, middleware устройства полем error
		var errResp struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.Detail
		if msg == "" {
			msg = errResp.Error
		}
		return &statusError{Status: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

// classify сопоставляет ответ сервера с ошибками домена:
// 422 и 400 окончательные, 5xx и 429 транспортные
func (h *httpClient) classify(op string, err error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}

	switch {
	case se.Status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", snapshot.ErrInvalidPayload, se.Message)
	case se.Status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", snapshot.ErrInvalidKey, se.Message)
	case se.Status >= 500, se.Status == http.StatusTooManyRequests:
		return &snapshot.TransportError{Op: op, Err: se}
	}
	return err
}

func transport(op string, err error) error {
	return &snapshot.TransportError{Op: op, Err: err}
}

func snapshotPath(key snapshot.Key) string {
	return "/api/v1/snapshots/" + url.PathEscape(key.Type) + "/" + url.PathEscape(key.ID)
}
