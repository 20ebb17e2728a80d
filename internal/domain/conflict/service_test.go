package conflict

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"scoutsync/internal/domain/changelog"
)

// MockAuditRepository is a mock implementation of the AuditRepository interface for testing
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) SaveAudit(ctx context.Context, entry *AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AuditEntry), args.Error(1)
}

func TestService_Resolve(t *testing.T) {
	t.Run("remote newer is audited with discarded local payload", func(t *testing.T) {
		repo := new(MockAuditRepository)
		var saved *AuditEntry
		repo.On("SaveAudit", mock.Anything, mock.AnythingOfType("*conflict.AuditEntry")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*AuditEntry) }).
			Return(nil)

		svc := NewService(LastWriteWinsStrategy{}, repo, slog.Default())
		local := localChange(changelog.OpUpdate, `{"name":"Cabin 7 local"}`, t1)
		remote := remoteSnapshot(`{"name":"Cabin 7 remote"}`, 4, t2)

		res := svc.Resolve(context.Background(), local, remote)

		assert.Equal(t, SideRemote, res.Winner)
		require.NotNil(t, saved)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, int64(7), saved.ChangeID)
		assert.Equal(t, "cabin-7", saved.EntityID)
		assert.Equal(t, LastWriteWins, saved.Strategy)
		assert.Equal(t, SideRemote, saved.Winner)
		assert.Equal(t, int64(4), saved.RemoteVersion)
		assert.JSONEq(t, `{"name":"Cabin 7 local"}`, string(saved.DiscardedPayload))
		assert.JSONEq(t, `{"name":"Cabin 7 remote"}`, string(saved.WinningPayload))
		repo.AssertExpectations(t)
	})

	t.Run("audit failure does not affect resolution", func(t *testing.T) {
		repo := new(MockAuditRepository)
		repo.On("SaveAudit", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		svc := NewService(LastWriteWinsStrategy{}, repo, slog.Default())
		res := svc.Resolve(context.Background(),
			localChange(changelog.OpUpdate, `{"name":"a"}`, t2),
			remoteSnapshot(`{"name":"b"}`, 2, t1))

		assert.Equal(t, SideLocal, res.Winner)
	})

	t.Run("nil strategy defaults to last write wins", func(t *testing.T) {
		svc := NewService(nil, nil, slog.Default())
		assert.Equal(t, LastWriteWins, svc.Strategy())
	})
}

func TestService_Audit(t *testing.T) {
	repo := new(MockAuditRepository)
	repo.On("ListAudit", mock.Anything, 50).Return([]AuditEntry{{ID: "a"}, {ID: "b"}}, nil)
	repo.On("ListAudit", mock.Anything, 5).Return(nil, errors.New("boom"))

	svc := NewService(ManualStrategy{}, repo, slog.Default())

	entries, err := svc.Audit(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = svc.Audit(context.Background(), 5)
	assert.Error(t, err)
}
