package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"

	"go.opentelemetry.io/otel"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"scoutsync/internal/app/client/config"
	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/conflict"
	"scoutsync/internal/domain/state"
	"scoutsync/internal/domain/sync"
	"scoutsync/internal/infrastructure/lock"
	"scoutsync/internal/infrastructure/storage/memory"
	"scoutsync/internal/infrastructure/storage/sqlite"
)

type App struct {
	config *config.Config
	log    *slog.Logger
	remote *httpClient
	probe  *ConnectivityProbe
	closer io.Closer

	changes   *changelog.Service
	state     *state.Service
	conflicts *conflict.Service
	sessions  sync.SessionRepository
	engine    *sync.Engine
	scheduler *sync.Scheduler
	backups   *backup.Snapshotter

	wg     gosync.WaitGroup
	cancel context.CancelFunc
	mu     gosync.Mutex
}

// repositories локальные хранилища одного из бэкендов
type repositories struct {
	changes  changelog.Repository
	state    state.Repository
	audit    conflict.AuditRepository
	backups  backup.Repository
	sessions sync.SessionRepository
	lock     sync.SessionLock
	closer   io.Closer
}

type options struct {
	out io.Writer
}

// Option настройка приложения
type Option func(*options)

// WithOutput направляет консольные уведомления в w
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

func New(cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	strategy, err := conflict.NewStrategy(cfg.Conflict)
	if err != nil {
		return nil, fmt.Errorf("ошибка выбора стратегии конфликтов: %w", err)
	}

	validator, err := changelog.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации валидатора: %w", err)
	}

	repos := openRepositories(cfg, log)
	remote := NewHTTPClient(cfg, log)
	probe := NewConnectivityProbe(remote, cfg.Connectivity.ProbeInterval, log)

	stateService := state.NewService(repos.state, log)
	changes := changelog.NewService(repos.changes, validator, stateService, log, &changelog.Config{
		Retention: cfg.Changelog.Retention,
	})
	conflicts := conflict.NewService(strategy, repos.audit, log)

	observers := MultiObserver{NewLogObserver(log)}
	if metrics, err := NewMetricsObserver(otel.Meter("scoutsync")); err != nil {
		log.Warn("Метрики синхронизации недоступны", "error", err)
	} else {
		observers = append(observers, metrics)
	}

	engine := sync.NewEngine(sync.Dependencies{
		Changes:      changes,
		Remote:       remote,
		Local:        stateService,
		Resolver:     conflicts,
		Connectivity: probe,
		Notifier:     NewConsoleNotifier(o.out, cfg.Notify.Rate, cfg.Notify.Burst, log),
		Observer:     observers,
		Sessions:     repos.sessions,
		Lock:         repos.lock,
	}, &sync.Config{
		MaxRetries:     cfg.Sync.MaxRetries,
		RetryBaseDelay: cfg.Sync.RetryBaseDelay,
		CallTimeout:    cfg.Sync.CallTimeout,
		Interval:       cfg.Sync.Interval,
	}, log)

	backups := backup.NewSnapshotter(stateService, changes, engine, repos.backups, remote, log, &backup.Config{
		Interval:    cfg.Backup.Interval,
		Retention:   cfg.Backup.Retention,
		Destination: cfg.Backup.Destination,
		AppVersion:  cfg.AppVersion,
		DeviceID:    cfg.DeviceID,
	})

	return &App{
		config:    cfg,
		log:       log,
		remote:    remote,
		probe:     probe,
		closer:    repos.closer,
		changes:   changes,
		state:     stateService,
		conflicts: conflicts,
		sessions:  repos.sessions,
		engine:    engine,
		scheduler: sync.NewScheduler(engine, probe, cfg.Sync.Interval, log),
		backups:   backups,
	}, nil
}

func openRepositories(cfg *config.Config, log *slog.Logger) repositories {
	if !cfg.Ephemeral {
		storage, err := sqlite.New(cfg.DataPath)
		if err == nil {
			return repositories{
				changes:  sqlite.NewChangeLogRepository(storage),
				state:    sqlite.NewStateRepository(storage),
				audit:    sqlite.NewAuditRepository(storage),
				backups:  sqlite.NewBackupRepository(storage),
				sessions: sqlite.NewSessionRepository(storage),
				lock:     lock.NewFileLock(cfg.DataPath + ".lock"),
				closer:   storage,
			}
		}
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
	}

	return repositories{
		changes:  memory.NewChangeLogRepository(),
		state:    memory.NewStateRepository(),
		audit:    memory.NewAuditRepository(),
		backups:  memory.NewBackupRepository(),
		sessions: memory.NewSessionRepository(),
	}
}

// Mutate записывает изменение в журнал и применяет его к локальному состоянию.
// Изменение считается принятым, как только оно записано в журнал.
func (a *App) Mutate(ctx context.Context, entityType, entityID string, op changelog.Operation, payload json.RawMessage) (*changelog.ChangeRecord, error) {
	rec, err := a.changes.Append(ctx, entityType, entityID, op, payload)
	if err != nil {
		return nil, err
	}

	if err := a.state.Apply(ctx, rec.Key(), rec.Operation, rec.Payload); err != nil {
		return rec, fmt.Errorf("изменение %d записано в журнал, но не применено локально: %w", rec.ID, err)
	}

	a.log.Debug("Изменение записано",
		"change_id", rec.ID,
		"entity", rec.Key().String(),
		"operation", rec.Operation,
	)
	return rec, nil
}

// Sync проверяет доступность сервера и выполняет одну сессию синхронизации
func (a *App) Sync(ctx context.Context) (*sync.Summary, error) {
	a.probe.Check(ctx)

	summary, started := a.scheduler.RequestSync(ctx)
	if !started {
		return nil, sync.ErrSessionRunning
	}
	if summary == nil {
		return nil, errors.New("сессия синхронизации не вернула итог")
	}
	if summary.Status == sync.StatusFailed {
		return summary, fmt.Errorf("синхронизация не выполнена: %s", summary.Err)
	}
	return summary, nil
}

// Backup создает ручную копию. Пустой dest означает место из конфигурации.
func (a *App) Backup(ctx context.Context, dest backup.Destination) (*backup.Snapshot, error) {
	if dest == "" {
		return a.backups.Capture(ctx, backup.KindManual)
	}
	if !dest.Valid() {
		return nil, fmt.Errorf("неизвестное место хранения копии: %s", dest)
	}

	snap, err := a.backups.Build(ctx, backup.KindManual)
	if err != nil {
		return nil, err
	}
	return a.backups.Store(ctx, snap, dest)
}

// Restore восстанавливает локальное состояние из копии
func (a *App) Restore(ctx context.Context, id string, force bool) error {
	if id == "" {
		return errors.New("не указан идентификатор копии")
	}
	return a.backups.Restore(ctx, id, force)
}

// Daemon запускает планировщик синхронизации, автоматические копии
// и проверку соединения до отмены контекста или сигнала завершения
func (a *App) Daemon(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.handleSignals(ctx)
	}()

	recovered, err := a.engine.RecoverInFlight(ctx)
	switch {
	case errors.Is(err, sync.ErrSessionRunning):
		a.log.Info("Сессия синхронизации идет в другом процессе, журнал не трогаем")
	case err != nil:
		return fmt.Errorf("ошибка восстановления журнала: %w", err)
	case recovered > 0:
		a.log.Info("Возвращены незавершенные записи журнала", "count", recovered)
	}

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"device", a.config.DeviceID,
		"env", a.config.Env,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.probe.Run(ctx)
	})
	g.Go(func() error {
		return a.scheduler.Run(ctx)
	})
	g.Go(func() error {
		return a.backups.Run(ctx)
	})

	err = g.Wait()
	cancel()
	a.wg.Wait()
	return err
}

func (a *App) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.log.Info("Получен сигнал завершения", "signal", sig.String())
		a.mu.Lock()
		if a.cancel != nil {
			a.cancel()
		}
		a.mu.Unlock()
	case <-ctx.Done():
	}
}

// Shutdown останавливает фоновые циклы и закрывает хранилище
func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	a.wg.Wait()

	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.log.Error("Ошибка закрытия хранилища", "error", err)
		}
	}
	a.log.Info("Клиент завершил работу")
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection(ctx context.Context) error {
	return a.remote.HealthCheck(ctx)
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) ChangeLog() *changelog.Service {
	return a.changes
}

func (a *App) State() *state.Service {
	return a.state
}

func (a *App) Conflicts() *conflict.Service {
	return a.conflicts
}

func (a *App) Backups() *backup.Snapshotter {
	return a.backups
}

func (a *App) Engine() *sync.Engine {
	return a.engine
}

// Sessions последние сессии синхронизации, от новых к старым
func (a *App) Sessions(ctx context.Context, limit int) ([]sync.Summary, error) {
	return a.sessions.ListSessions(ctx, limit)
}

// RemoteBackups копии устройства на сервере
func (a *App) RemoteBackups(ctx context.Context) ([]backup.Snapshot, error) {
	return a.remote.ListBackups(ctx)
}

type appKey struct{}

// WithApp кладет приложение в контекст команды
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// FromContext достает приложение из контекста команды
func FromContext(ctx context.Context) (*App, bool) {
	app, ok := ctx.Value(appKey{}).(*App)
	return app, ok
}
