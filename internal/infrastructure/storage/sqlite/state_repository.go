package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/domain/state"
)

type StateRepository struct {
	s *Storage
}

func NewStateRepository(s *Storage) *StateRepository {
	return &StateRepository{s: s}
}

func (r *StateRepository) GetEntity(ctx context.Context, key snapshot.Key) (*state.Entity, error) {
	var (
		e       state.Entity
		payload []byte
		updated int64
	)
	err := r.s.db.QueryRowContext(ctx, `
		SELECT entity_type, entity_id, payload, updated_at
		FROM entities
		WHERE entity_type = ? AND entity_id = ?
	`, key.Type, key.ID).Scan(&e.EntityType, &e.EntityID, &payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, state.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сущности: %w", err)
	}

	e.Payload = payload
	e.UpdatedAt = fromNanos(updated)
	return &e, nil
}

func (r *StateRepository) PutEntity(ctx context.Context, entity *state.Entity) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO entities (entity_type, entity_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, entity.EntityType, entity.EntityID, []byte(entity.Payload), toNanos(entity.UpdatedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения сущности: %w", err)
	}
	return nil
}

func (r *StateRepository) DeleteEntity(ctx context.Context, key snapshot.Key) error {
	res, err := r.s.db.ExecContext(ctx,
		`DELETE FROM entities WHERE entity_type = ? AND entity_id = ?`, key.Type, key.ID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сущности: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return state.ErrNotFound
	}
	return nil
}

func (r *StateRepository) ListEntities(ctx context.Context) ([]state.Entity, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, payload, updated_at
		FROM entities
		ORDER BY entity_type, entity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	entities := make([]state.Entity, 0)
	for rows.Next() {
		var (
			e       state.Entity
			payload []byte
			updated int64
		)
		if err := rows.Scan(&e.EntityType, &e.EntityID, &payload, &updated); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сущности: %w", err)
		}
		e.Payload = payload
		e.UpdatedAt = fromNanos(updated)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (r *StateRepository) KnownVersion(ctx context.Context, key snapshot.Key) (int64, error) {
	var version int64
	err := r.s.db.QueryRowContext(ctx,
		`SELECT version FROM entity_versions WHERE entity_type = ? AND entity_id = ?`,
		key.Type, key.ID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения версии: %w", err)
	}
	return version, nil
}

func (r *StateRepository) SetKnownVersion(ctx context.Context, key snapshot.Key, version int64) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO entity_versions (entity_type, entity_id, version)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET version = excluded.version
	`, key.Type, key.ID, version)
	if err != nil {
		return fmt.Errorf("ошибка сохранения версии: %w", err)
	}
	return nil
}

func (r *StateRepository) KnownVersions(ctx context.Context) (map[snapshot.Key]int64, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT entity_type, entity_id, version FROM entity_versions`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	versions := make(map[snapshot.Key]int64)
	for rows.Next() {
		var (
			key     snapshot.Key
			version int64
		)
		if err := rows.Scan(&key.Type, &key.ID, &version); err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		versions[key] = version
	}
	return versions, rows.Err()
}

func (r *StateRepository) GetSetting(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := r.s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", state.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("ошибка получения настройки: %w", err)
	}
	return value, nil
}

func (r *StateRepository) PutSetting(ctx context.Context, namespace, key, value string) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO settings (namespace, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value
	`, namespace, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения настройки: %w", err)
	}
	return nil
}

func (r *StateRepository) ListSettings(ctx context.Context, namespace string) (map[string]string, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("ошибка сканирования настройки: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

func (r *StateRepository) ReplaceAll(ctx context.Context, dump state.Dump) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"entities", "entity_versions", "settings"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("ошибка очистки %s: %w", table, err)
			}
		}

		for _, e := range dump.Entities {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO entities (entity_type, entity_id, payload, updated_at) VALUES (?, ?, ?, ?)
			`, e.EntityType, e.EntityID, []byte(e.Payload), toNanos(e.UpdatedAt)); err != nil {
				return fmt.Errorf("ошибка восстановления сущности: %w", err)
			}
		}

		for raw, version := range dump.KnownVersions {
			key, ok := state.ParseKey(raw)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO entity_versions (entity_type, entity_id, version) VALUES (?, ?, ?)
			`, key.Type, key.ID, version); err != nil {
				return fmt.Errorf("ошибка восстановления версии: %w", err)
			}
		}

		namespaces := map[string]map[string]string{
			state.NamespacePreferences: dump.Preferences,
			state.NamespaceSettings:    dump.Settings,
		}
		for ns, values := range namespaces {
			for k, v := range values {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO settings (namespace, key, value) VALUES (?, ?, ?)
				`, ns, k, v); err != nil {
					return fmt.Errorf("ошибка восстановления настройки: %w", err)
				}
			}
		}
		return nil
	})
}
