package client

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

// HealthChecker проверка доступности сервера
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectivityProbe считает сервер доступным, пока отвечает его health endpoint.
// В канал Changes попадают только переходы offline -> online.
type ConnectivityProbe struct {
	checker  HealthChecker
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	online  atomic.Bool
	changes chan bool
}

func NewConnectivityProbe(checker HealthChecker, interval time.Duration, log *slog.Logger) *ConnectivityProbe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &ConnectivityProbe{
		checker:  checker,
		interval: interval,
		timeout:  timeout,
		log:      log.With("component", "connectivity"),
		changes:  make(chan bool, 1),
	}
}

func (p *ConnectivityProbe) Online() bool {
	return p.online.Load()
}

func (p *ConnectivityProbe) Changes() <-chan bool {
	return p.changes
}

// Check выполняет одну проверку и возвращает текущее состояние
func (p *ConnectivityProbe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.HealthCheck(ctx)
	online := err == nil
	was := p.online.Swap(online)

	switch {
	case online && !was:
		p.log.Info("Сервер доступен")
		// Непрочитанное событие уже означает переход в online
		select {
		case p.changes <- true:
		default:
		}
	case !online && was:
		p.log.Warn("Сервер недоступен", "error", err)
	}
	return online
}

// Run периодически проверяет сервер до отмены контекста
func (p *ConnectivityProbe) Run(ctx context.Context) error {
	p.Check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
