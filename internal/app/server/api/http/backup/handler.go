package backup

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/snapshot"
)

type Handler struct {
	archive    backup.Archiver
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(archive backup.Archiver, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		archive:    archive,
		log:        log.With("component", "backup_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.putOp(), h.put)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.listOp(), h.list)
}

func (h *Handler) put(ctx context.Context, input *putInput) (*putOutput, error) {
	deviceID, ok := snapshot.DeviceFromContext(ctx)
	if !ok {
		return nil, huma.Error400BadRequest("device id is required")
	}
	if input.Body.ID != input.ID {
		return nil, huma.Error422UnprocessableEntity("backup id does not match path")
	}

	if err := h.archive.Put(ctx, deviceID, &input.Body); err != nil {
		return nil, h.mapError(err)
	}

	return &putOutput{Body: response{ID: input.ID, Status: "Ok"}}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	deviceID, ok := snapshot.DeviceFromContext(ctx)
	if !ok {
		return nil, huma.Error400BadRequest("device id is required")
	}

	snap, err := h.archive.Get(ctx, deviceID, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &findOutput{Body: *snap}, nil
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	deviceID, ok := snapshot.DeviceFromContext(ctx)
	if !ok {
		return nil, huma.Error400BadRequest("device id is required")
	}

	snaps, err := h.archive.List(ctx, deviceID)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &listOutput{Body: listResponse{Backups: snaps}}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, backup.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, backup.ErrInvalidBackup), errors.Is(err, backup.ErrChecksumMismatch):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		h.log.Error("backup request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
