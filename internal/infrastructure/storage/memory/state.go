package memory

import (
	"context"
	"sort"
	"sync"

	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/domain/state"
)

// StateRepository локальное состояние в памяти процесса
type StateRepository struct {
	mu       sync.RWMutex
	entities map[snapshot.Key]state.Entity
	versions map[snapshot.Key]int64
	settings map[string]map[string]string
}

func NewStateRepository() *StateRepository {
	return &StateRepository{
		entities: make(map[snapshot.Key]state.Entity),
		versions: make(map[snapshot.Key]int64),
		settings: make(map[string]map[string]string),
	}
}

func (r *StateRepository) GetEntity(_ context.Context, key snapshot.Key) (*state.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[key]
	if !ok {
		return nil, state.ErrNotFound
	}
	e.Payload = clone(e.Payload)
	return &e, nil
}

func (r *StateRepository) PutEntity(_ context.Context, entity *state.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entity
	stored.Payload = clone(entity.Payload)
	r.entities[entity.Key()] = stored
	return nil
}

func (r *StateRepository) DeleteEntity(_ context.Context, key snapshot.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[key]; !ok {
		return state.ErrNotFound
	}
	delete(r.entities, key)
	return nil
}

func (r *StateRepository) ListEntities(_ context.Context) ([]state.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]state.Entity, 0, len(r.entities))
	for _, e := range r.entities {
		e.Payload = clone(e.Payload)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

func (r *StateRepository) KnownVersion(_ context.Context, key snapshot.Key) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[key], nil
}

func (r *StateRepository) SetKnownVersion(_ context.Context, key snapshot.Key, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[key] = version
	return nil
}

func (r *StateRepository) KnownVersions(_ context.Context) (map[snapshot.Key]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[snapshot.Key]int64, len(r.versions))
	for k, v := range r.versions {
		out[k] = v
	}
	return out, nil
}

func (r *StateRepository) GetSetting(_ context.Context, namespace, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.settings[namespace][key]
	if !ok {
		return "", state.ErrNotFound
	}
	return v, nil
}

func (r *StateRepository) PutSetting(_ context.Context, namespace, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings[namespace] == nil {
		r.settings[namespace] = make(map[string]string)
	}
	r.settings[namespace][key] = value
	return nil
}

func (r *StateRepository) ListSettings(_ context.Context, namespace string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.settings[namespace]))
	for k, v := range r.settings[namespace] {
		out[k] = v
	}
	return out, nil
}

func (r *StateRepository) ReplaceAll(_ context.Context, dump state.Dump) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[snapshot.Key]state.Entity, len(dump.Entities))
	for _, e := range dump.Entities {
		e.Payload = clone(e.Payload)
		r.entities[e.Key()] = e
	}

	r.versions = make(map[snapshot.Key]int64, len(dump.KnownVersions))
	for raw, v := range dump.KnownVersions {
		if key, ok := state.ParseKey(raw); ok {
			r.versions[key] = v
		}
	}

	r.settings = map[string]map[string]string{
		state.NamespacePreferences: copyMap(dump.Preferences),
		state.NamespaceSettings:    copyMap(dump.Settings),
	}
	return nil
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
