package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockArchiveRepository is a mock implementation of the ArchiveRepository interface for testing
type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) SaveBackup(ctx context.Context, deviceID string, snap *Snapshot) error {
	args := m.Called(ctx, deviceID, snap)
	return args.Error(0)
}

func (m *MockArchiveRepository) GetBackup(ctx context.Context, deviceID, id string) (*Snapshot, error) {
	args := m.Called(ctx, deviceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Snapshot), args.Error(1)
}

func (m *MockArchiveRepository) ListBackups(ctx context.Context, deviceID string) ([]Snapshot, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Snapshot), args.Error(1)
}

func (m *MockArchiveRepository) DeleteBackups(ctx context.Context, deviceID string, ids []string) error {
	args := m.Called(ctx, deviceID, ids)
	return args.Error(0)
}

func validSnapshot(id string) *Snapshot {
	payload := []byte(`{"created_at":"2026-05-01T10:00:00Z","data":{"entities":[],"preferences":{},"settings":{}},"metadata":{"app_version":"1.3.0","device_id":"laptop","entity_count":0,"storage_used":0},"version":1}`)
	return &Snapshot{
		ID:        id,
		Payload:   payload,
		SizeBytes: int64(len(payload)),
		Checksum:  checksum(payload),
	}
}

func TestArchive_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and evicts beyond retention", func(t *testing.T) {
		repo := new(MockArchiveRepository)
		snap := validSnapshot("b3")
		repo.On("SaveBackup", mock.Anything, "laptop", snap).Return(nil)
		repo.On("ListBackups", mock.Anything, "laptop").Return([]Snapshot{{ID: "b3"}, {ID: "b2"}, {ID: "b1"}}, nil)
		repo.On("DeleteBackups", mock.Anything, "laptop", []string{"b1"}).Return(nil)

		err := NewArchive(repo, 2, slog.Default()).Put(ctx, "laptop", snap)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("checksum mismatch is rejected", func(t *testing.T) {
		repo := new(MockArchiveRepository)
		snap := validSnapshot("b1")
		snap.Checksum = "deadbeef"

		err := NewArchive(repo, 2, slog.Default()).Put(ctx, "laptop", snap)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
		repo.AssertNotCalled(t, "SaveBackup", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing device", func(t *testing.T) {
		err := NewArchive(new(MockArchiveRepository), 2, slog.Default()).Put(ctx, "", validSnapshot("b1"))
		assert.ErrorIs(t, err, ErrInvalidBackup)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockArchiveRepository)
		repo.On("SaveBackup", mock.Anything, "laptop", mock.Anything).Return(errors.New("db down"))

		err := NewArchive(repo, 2, slog.Default()).Put(ctx, "laptop", validSnapshot("b1"))
		assert.Error(t, err)
	})
}

func TestArchive_List(t *testing.T) {
	repo := new(MockArchiveRepository)
	repo.On("ListBackups", mock.Anything, "laptop").Return([]Snapshot{*validSnapshot("b1")}, nil)

	snaps, err := NewArchive(repo, 2, slog.Default()).List(context.Background(), "laptop")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Nil(t, snaps[0].Payload)
}
