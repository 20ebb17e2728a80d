package client

import (
	"context"
	"fmt"
	"io"
	gosync "sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"

	"scoutsync/internal/domain/sync"
)

// ConsoleNotifier выводит уведомления в консоль.
// Скорость ограничена token bucket, повтор уведомления с тем же тегом
// в пределах dedupWindow подавляется.
type ConsoleNotifier struct {
	out         io.Writer
	limiter     *rate.Limiter
	dedupWindow time.Duration
	log         *slog.Logger
	now         func() time.Time

	mu   gosync.Mutex
	last map[string]time.Time
}

func NewConsoleNotifier(out io.Writer, perSecond float64, burst int, log *slog.Logger) *ConsoleNotifier {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &ConsoleNotifier{
		out:         out,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		dedupWindow: 5 * time.Second,
		log:         log.With("component", "notifier"),
		now:         time.Now,
		last:        make(map[string]time.Time),
	}
}

func (n *ConsoleNotifier) Notify(_ context.Context, note sync.Notification) error {
	now := n.now()

	n.mu.Lock()
	if at, ok := n.last[note.Tag]; ok && now.Sub(at) < n.dedupWindow {
		n.mu.Unlock()
		n.log.Debug("Уведомление подавлено как повтор", "tag", note.Tag)
		return nil
	}
	if !n.limiter.AllowN(now, 1) {
		n.mu.Unlock()
		n.log.Debug("Уведомление отброшено ограничителем", "tag", note.Tag)
		return nil
	}
	n.last[note.Tag] = now
	n.mu.Unlock()

	_, err := fmt.Fprintf(n.out, "%s %s\n", tagColor(note.Tag).Sprint(note.Title), note.Message)
	return err
}

func tagColor(tag string) *color.Color {
	switch tag {
	case sync.TagSyncError:
		return color.New(color.FgRed, color.Bold)
	case sync.TagConflictResolved:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}
