package conflict

import "context"

// AuditRepository журнал разрешений конфликтов
type AuditRepository interface {
	SaveAudit(ctx context.Context, entry *AuditEntry) error
	// ListAudit возвращает последние записи, новые первыми
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}
