package sync

import "context"

// SessionRepository история сессий синхронизации
type SessionRepository interface {
	SaveSession(ctx context.Context, summary *Summary) error
	// LastSession возвращает ErrSessionNotFound, если сессий еще не было
	LastSession(ctx context.Context) (*Summary, error)
	ListSessions(ctx context.Context, limit int) ([]Summary, error)
}
