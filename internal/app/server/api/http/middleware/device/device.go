package device

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/snapshot"
)

// Header заголовок, которым клиент представляется серверу
const Header = "X-Device-ID"

type Device struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Device {
	return &Device{
		log: log.With("component", "device_middleware"),
	}
}

// Middleware требует X-Device-ID и кладет идентификатор устройства в контекст запроса
func (d *Device) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		deviceID := ctx.Header(Header)

		if deviceID == "" || len(deviceID) > 128 {
			d.log.Warn("request without valid device id", "path", ctx.URL().Path)
			ctx.SetStatus(http.StatusBadRequest)
			ctx.SetHeader("Content-Type", "application/json")

			if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
				"error": Header + " header is required",
			}); err != nil {
				d.log.Error("failed to encode error response", "error", err)
			}
			return
		}

		next(huma.WithContext(ctx, snapshot.WithDevice(ctx.Context(), deviceID)))
	}
}

// GetDeviceID возвращает идентификатор устройства текущего запроса
func GetDeviceID(ctx huma.Context) (string, bool) {
	return snapshot.DeviceFromContext(ctx.Context())
}
