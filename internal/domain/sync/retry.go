package sync

import (
	"context"
	"errors"
	"time"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/snapshot"
)

const maxBackoffShift = 16

// backoff задержка перед повтором номер attempt (с 1): base, 2*base, 4*base...
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << shift
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isPermanent ошибки, которые повтор не исправит
func isPermanent(err error) bool {
	return errors.Is(err, snapshot.ErrInvalidPayload) ||
		errors.Is(err, snapshot.ErrInvalidKey) ||
		changelog.IsValidation(err)
}

// classify превращает таймаут вызова в TransportError
func classify(op string, err error) error {
	if err == nil || snapshot.IsTransport(err) || isPermanent(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &snapshot.TransportError{Op: op, Err: err}
	}
	return err
}
