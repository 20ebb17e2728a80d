// GET    /api/v1/health                      # Проверка работоспособности (публичный)
// GET    /api/v1/snapshots/{type}/{id}       # Текущий снимок сущности (device)
// PUT    /api/v1/snapshots/{type}/{id}       # Условная запись (device)
// DELETE /api/v1/snapshots/{type}/{id}       # Условное удаление (device)
// PUT    /api/v1/backups/{id}                # Сохранить резервную копию (device)
// GET    /api/v1/backups/{id}                # Получить резервную копию (device)
// GET    /api/v1/backups                     # Список резервных копий (device)

package api

import (
	"path"
	"reflect"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	backupAPI "scoutsync/internal/app/server/api/http/backup"
	healthAPI "scoutsync/internal/app/server/api/http/health"
	"scoutsync/internal/app/server/api/http/middleware"
	"scoutsync/internal/app/server/api/http/middleware/device"
	"scoutsync/internal/app/server/api/http/middleware/logger"
	snapshotAPI "scoutsync/internal/app/server/api/http/snapshot"
	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/snapshot"
)

// Services зависимости HTTP API
type Services struct {
	Health    healthAPI.Pinger
	Snapshots snapshot.Servicer
	Backups   backup.Archiver
}

type Handlers struct {
	Health   *healthAPI.Handler
	Snapshot *snapshotAPI.Handler
	Backup   *backupAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(services Services, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("ScoutSync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"device": {Type: "apiKey", In: "header", Name: device.Header},
	}
	config.Components.Schemas = huma.NewMapRegistry("#/components/schemas/", schemaNamer)

	API := humachi.New(mux, config)

	h := handlers(services, log)
	h.Health.SetupRoutes(API)
	h.Snapshot.SetupRoutes(API)
	h.Backup.SetupRoutes(API)

	return mux
}

func handlers(services Services, log *slog.Logger) *Handlers {
	deviceMW := device.New(log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(services.Health, log, middlewares.GetAllAndClear())

	middlewares.Add(deviceMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	snapshotHandler := snapshotAPI.NewHandler(services.Snapshots, log, middlewares.GetAllAndClear())

	middlewares.Add(deviceMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	backupHandler := backupAPI.NewHandler(services.Backups, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		Snapshot: snapshotHandler,
		Backup:   backupHandler,
	}
}

// schemaNamer добавляет к имени схемы имя пакета: backup.Snapshot и
// snapshot.Snapshot должны попадать в реестр под разными именами
func schemaNamer(t reflect.Type, hint string) string {
	name := huma.DefaultSchemaNamer(t, hint)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return name
	}
	pkg := path.Base(t.PkgPath())
	return strings.ToUpper(pkg[:1]) + pkg[1:] + name
}
