package snapshot

import "context"

type deviceKey struct{}

// WithDevice сохраняет идентификатор устройства, выполняющего запись
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

// DeviceFromContext возвращает идентификатор устройства из контекста
func DeviceFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceKey{}).(string)
	return id, ok && id != ""
}
