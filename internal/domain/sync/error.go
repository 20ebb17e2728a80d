package sync

import "errors"

var (
	ErrSessionRunning  = errors.New("sync session already running")
	ErrOffline         = errors.New("remote store is unreachable")
	ErrSessionNotFound = errors.New("sync session not found")

	// errStaleVersion удаленная версия изменилась между чтением и записью
	errStaleVersion = errors.New("remote version changed during commit")
)
