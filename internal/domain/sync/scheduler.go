package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Trigger причина запуска сессии
type Trigger string

const (
	TriggerManual       Trigger = "manual"
	TriggerInterval     Trigger = "interval"
	TriggerConnectivity Trigger = "connectivity"
)

// Runner запускает сессию синхронизации
type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler решает, когда запускать сессию, и не допускает двух сессий одновременно.
// Новый триггер во время сессии игнорируется, а не ставится в очередь.
type Scheduler struct {
	engine   Runner
	events   ConnectivityEvents
	interval time.Duration
	log      *slog.Logger

	busy    atomic.Bool
	started atomic.Int64
}

// NewScheduler создает планировщик. events может быть nil.
func NewScheduler(engine Runner, events ConnectivityEvents, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	return &Scheduler{
		engine:   engine,
		events:   events,
		interval: interval,
		log:      log.With("component", "sync_scheduler"),
	}
}

// RequestSync ручной запуск. Возвращает false, если сессия уже идет.
func (s *Scheduler) RequestSync(ctx context.Context) (*Summary, bool) {
	return s.trigger(ctx, TriggerManual)
}

// SessionsStarted число сессий, запущенных планировщиком
func (s *Scheduler) SessionsStarted() int64 {
	return s.started.Load()
}

// Run запускает сессии по таймеру и при переходе в online до отмены контекста
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.intervalLoop(ctx)
	})
	if s.events != nil {
		g.Go(func() error {
			return s.connectivityLoop(ctx)
		})
	}

	return g.Wait()
}

func (s *Scheduler) intervalLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("interval trigger started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.trigger(ctx, TriggerInterval)
		}
	}
}

func (s *Scheduler) connectivityLoop(ctx context.Context) error {
	changes := s.events.Changes()

	for {
		select {
		case <-ctx.Done():
			return nil
		case online, ok := <-changes:
			if !ok {
				return nil
			}
			if online {
				s.log.Info("connectivity restored")
				s.trigger(ctx, TriggerConnectivity)
			} else {
				s.log.Info("connectivity lost")
			}
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, trigger Trigger) (*Summary, bool) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Info("sync already running, trigger ignored", "trigger", trigger)
		return nil, false
	}
	defer s.busy.Store(false)

	s.started.Add(1)
	s.log.Debug("sync triggered", "trigger", trigger)

	summary, err := s.engine.Run(ctx)
	if errors.Is(err, ErrSessionRunning) {
		// сессию запустили в обход планировщика
		s.started.Add(-1)
		s.log.Info("sync already running, trigger ignored", "trigger", trigger)
		return nil, false
	}
	if err != nil {
		s.log.Warn("sync session did not start", "trigger", trigger, "error", err)
	}
	return summary, true
}
