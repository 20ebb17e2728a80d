package client

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/sync"
)

// LogObserver пишет итоги сессий и ошибки записей в лог
type LogObserver struct {
	log *slog.Logger
}

func NewLogObserver(log *slog.Logger) *LogObserver {
	return &LogObserver{log: log.With("component", "sync_observer")}
}

func (o *LogObserver) SessionFinished(_ context.Context, s sync.Summary) {
	attrs := []any{
		"session", s.ID,
		"status", s.Status,
		"processed", s.RecordsProcessed,
		"confirmed", s.Confirmed,
		"failed", s.Failed,
		"conflicts", s.ConflictsResolved,
		"duration", s.Duration(),
	}
	if s.Status == sync.StatusFailed {
		o.log.Error("Сессия синхронизации не удалась", append(attrs, "error", s.Err)...)
		return
	}
	o.log.Info("Сессия синхронизации завершена", attrs...)
}

func (o *LogObserver) RecordFailed(_ context.Context, f sync.RecordError) {
	o.log.Warn("Ошибка синхронизации записи",
		"change_id", f.ChangeID,
		"entity", f.Entity,
		"reason", f.Reason,
		"retryable", f.Retryable,
	)
}

// MetricsObserver публикует счетчики синхронизации через OpenTelemetry
type MetricsObserver struct {
	sessions  metric.Int64Counter
	records   metric.Int64Counter
	conflicts metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	sessions, err := meter.Int64Counter("scoutsync.sync.sessions",
		metric.WithDescription("Завершенные сессии синхронизации"))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания счетчика сессий: %w", err)
	}
	records, err := meter.Int64Counter("scoutsync.sync.records",
		metric.WithDescription("Обработанные записи журнала"))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания счетчика записей: %w", err)
	}
	conflicts, err := meter.Int64Counter("scoutsync.sync.conflicts",
		metric.WithDescription("Разрешенные конфликты"))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания счетчика конфликтов: %w", err)
	}
	failures, err := meter.Int64Counter("scoutsync.sync.record_failures",
		metric.WithDescription("Ошибки отдельных записей"))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания счетчика ошибок: %w", err)
	}
	duration, err := meter.Float64Histogram("scoutsync.sync.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Длительность сессии"))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания гистограммы: %w", err)
	}

	return &MetricsObserver{
		sessions:  sessions,
		records:   records,
		conflicts: conflicts,
		failures:  failures,
		duration:  duration,
	}, nil
}

func (o *MetricsObserver) SessionFinished(ctx context.Context, s sync.Summary) {
	status := metric.WithAttributes(attribute.String("status", string(s.Status)))
	o.sessions.Add(ctx, 1, status)
	o.duration.Record(ctx, s.Duration().Seconds(), status)
	o.records.Add(ctx, int64(s.Confirmed), metric.WithAttributes(attribute.String("result", "confirmed")))
	o.records.Add(ctx, int64(s.Failed), metric.WithAttributes(attribute.String("result", "failed")))
	o.conflicts.Add(ctx, int64(s.ConflictsResolved))
}

func (o *MetricsObserver) RecordFailed(ctx context.Context, f sync.RecordError) {
	o.failures.Add(ctx, 1, metric.WithAttributes(attribute.Bool("retryable", f.Retryable)))
}

// MultiObserver рассылает события нескольким наблюдателям
type MultiObserver []sync.Observer

func (m MultiObserver) SessionFinished(ctx context.Context, s sync.Summary) {
	for _, o := range m {
		o.SessionFinished(ctx, s)
	}
}

func (m MultiObserver) RecordFailed(ctx context.Context, f sync.RecordError) {
	for _, o := range m {
		o.RecordFailed(ctx, f)
	}
}
