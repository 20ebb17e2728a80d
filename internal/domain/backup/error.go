package backup

import "errors"

var (
	ErrNotFound         = errors.New("backup not found")
	ErrPendingChanges   = errors.New("changelog has unsynchronized changes")
	ErrSyncRunning      = errors.New("sync session is running")
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
	ErrNoRemote         = errors.New("remote backup store is not configured")
	ErrInvalidBackup    = errors.New("invalid backup")
)
