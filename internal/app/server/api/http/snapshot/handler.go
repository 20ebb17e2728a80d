package snapshot

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/snapshot"
)

type Handler struct {
	service    snapshot.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service snapshot.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "snapshot_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.putOp(), h.put)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) get(ctx context.Context, input *keyInput) (*getOutput, error) {
	key := snapshot.Key{Type: input.Type, ID: input.ID}

	snap, err := h.service.GetSnapshot(ctx, key)
	if err != nil {
		return nil, h.mapError(err)
	}
	if snap == nil {
		return nil, huma.Error404NotFound("snapshot not found")
	}

	return &getOutput{Body: *snap}, nil
}

func (h *Handler) put(ctx context.Context, input *putInput) (*writeOutput, error) {
	key := snapshot.Key{Type: input.Type, ID: input.ID}

	result, err := h.service.PutSnapshot(ctx, key, input.Body.Payload, input.Body.ExpectedVersion)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &writeOutput{Body: result}, nil
}

func (h *Handler) delete(ctx context.Context, input *deleteInput) (*writeOutput, error) {
	key := snapshot.Key{Type: input.Type, ID: input.ID}

	result, err := h.service.DeleteSnapshot(ctx, key, input.ExpectedVersion)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &writeOutput{Body: result}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, snapshot.ErrInvalidPayload):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, snapshot.ErrInvalidKey):
		return huma.Error400BadRequest(err.Error())
	default:
		h.log.Error("snapshot request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
