package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/snapshot"
)

func TestBackoff(t *testing.T) {
	base := 5 * time.Second
	assert.Equal(t, 5*time.Second, backoff(base, 1))
	assert.Equal(t, 10*time.Second, backoff(base, 2))
	assert.Equal(t, 20*time.Second, backoff(base, 3))
	assert.Equal(t, 5*time.Second, backoff(base, 0))
}

func TestSleepWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepWithContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepWithContext(context.Background(), time.Millisecond))
}

func TestClassify(t *testing.T) {
	timeout := classify("get", context.DeadlineExceeded)
	assert.True(t, snapshot.IsTransport(timeout))

	invalid := classify("put", snapshot.ErrInvalidPayload)
	assert.True(t, isPermanent(invalid))
	assert.False(t, snapshot.IsTransport(invalid))

	assert.True(t, isPermanent(&changelog.ValidationError{Field: "payload", Reason: "bad"}))
	assert.False(t, isPermanent(errors.New("connection reset")))
}
