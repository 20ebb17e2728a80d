package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	storage    Pinger
	log        *slog.Logger
	middleware huma.Middlewares
}

// NewHandler создает обработчик health check. storage может быть nil.
func NewHandler(storage Pinger, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		storage:    storage,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	if h.storage != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.storage.Ping(pingCtx); err != nil {
			h.log.Error("storage is unavailable", "error", err)
			return nil, huma.Error503ServiceUnavailable("storage is unavailable")
		}
	}

	return &Output{
		Body: Response{
			Status:  "OK",
			Storage: "OK",
		},
	}, nil
}
