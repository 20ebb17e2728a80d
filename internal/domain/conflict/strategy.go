package conflict

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/snapshot"
)

// Strategy детерминированно выбирает победителя для пары (local, remote).
// Реализации не должны иметь побочных эффектов.
type Strategy interface {
	Name() StrategyName
	Resolve(local changelog.ChangeRecord, remote snapshot.Snapshot) Resolution
}

// NewStrategy возвращает стратегию по имени
func NewStrategy(name StrategyName) (Strategy, error) {
	switch name {
	case LastWriteWins, "":
		return LastWriteWinsStrategy{}, nil
	case FieldMerge:
		return FieldMergeStrategy{}, nil
	case Manual:
		return ManualStrategy{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
}

// LastWriteWinsStrategy побеждает более поздняя запись, при равенстве сервер
type LastWriteWinsStrategy struct{}

func (LastWriteWinsStrategy) Name() StrategyName { return LastWriteWins }

func (s LastWriteWinsStrategy) Resolve(local changelog.ChangeRecord, remote snapshot.Snapshot) Resolution {
	if res, ok := sameContent(s.Name(), local, remote); ok {
		return res
	}

	if local.LocalTimestamp.After(remote.ModifiedAt) {
		return Resolution{
			Strategy:  s.Name(),
			Winner:    SideLocal,
			Payload:   local.Payload,
			Deleted:   local.Operation == changelog.OpDelete,
			Discarded: remote.Payload,
			Rationale: fmt.Sprintf("local change at %s is newer than remote version %d at %s",
				local.LocalTimestamp.UTC().Format(timeLayout), remote.Version, remote.ModifiedAt.UTC().Format(timeLayout)),
		}
	}

	rationale := fmt.Sprintf("remote version %d at %s is newer than local change at %s",
		remote.Version, remote.ModifiedAt.UTC().Format(timeLayout), local.LocalTimestamp.UTC().Format(timeLayout))
	if local.LocalTimestamp.Equal(remote.ModifiedAt) {
		rationale = "timestamps tie, remote is authoritative"
	}

	return Resolution{
		Strategy:  s.Name(),
		Winner:    SideRemote,
		Payload:   remote.Payload,
		Deleted:   remote.Deleted,
		Discarded: local.Payload,
		Rationale: rationale,
	}
}

// FieldMergeStrategy объединяет поля двух JSON-объектов. Общие поля берутся
// у более поздней стороны, остальные сохраняются с обеих сторон.
// Если одна из сторон удалена, работает как last-write-wins.
type FieldMergeStrategy struct{}

func (FieldMergeStrategy) Name() StrategyName { return FieldMerge }

func (s FieldMergeStrategy) Resolve(local changelog.ChangeRecord, remote snapshot.Snapshot) Resolution {
	if res, ok := sameContent(s.Name(), local, remote); ok {
		return res
	}

	localFields, lok := objectFields(local.Payload)
	remoteFields, rok := objectFields(remote.Payload)
	if local.Operation == changelog.OpDelete || remote.Deleted || !lok || !rok {
		res := LastWriteWinsStrategy{}.Resolve(local, remote)
		res.Strategy = s.Name()
		res.Rationale = "fallback to last-write-wins: " + res.Rationale
		return res
	}

	localNewer := local.LocalTimestamp.After(remote.ModifiedAt)
	merged := make(map[string]json.RawMessage, len(localFields)+len(remoteFields))
	for k, v := range remoteFields {
		merged[k] = v
	}
	for k, v := range localFields {
		if _, exists := merged[k]; !exists || localNewer {
			merged[k] = v
		}
	}

	payload, err := canonical(merged)
	if err != nil {
		res := LastWriteWinsStrategy{}.Resolve(local, remote)
		res.Strategy = s.Name()
		res.Rationale = "fallback to last-write-wins: " + err.Error()
		return res
	}

	discarded := local.Payload
	if localNewer {
		discarded = remote.Payload
	}

	return Resolution{
		Strategy:  s.Name(),
		Winner:    SideMerged,
		Payload:   payload,
		Discarded: discarded,
		Rationale: fmt.Sprintf("merged %d local and %d remote fields, newer side: %s",
			len(localFields), len(remoteFields), newerSide(localNewer)),
	}
}

// ManualStrategy оставляет серверную версию и помечает конфликт для ручного разбора
type ManualStrategy struct{}

func (ManualStrategy) Name() StrategyName { return Manual }

func (s ManualStrategy) Resolve(local changelog.ChangeRecord, remote snapshot.Snapshot) Resolution {
	if res, ok := sameContent(s.Name(), local, remote); ok {
		return res
	}

	return Resolution{
		Strategy:    s.Name(),
		Winner:      SideRemote,
		Payload:     remote.Payload,
		Deleted:     remote.Deleted,
		Discarded:   local.Payload,
		Rationale:   "held for manual review, remote kept",
		NeedsReview: true,
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func sameContent(name StrategyName, local changelog.ChangeRecord, remote snapshot.Snapshot) (Resolution, bool) {
	localDeleted := local.Operation == changelog.OpDelete
	if localDeleted != remote.Deleted {
		return Resolution{}, false
	}
	if !localDeleted && !equalJSON(local.Payload, remote.Payload) {
		return Resolution{}, false
	}

	return Resolution{
		Strategy:  name,
		Winner:    SideRemote,
		Payload:   remote.Payload,
		Deleted:   remote.Deleted,
		Rationale: rationaleNoDivergence,
	}, true
}

func equalJSON(a, b json.RawMessage) bool {
	ca, errA := jcs.Transform(a)
	cb, errB := jcs.Transform(b)
	if errA != nil || errB != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	return bytes.Equal(ca, cb)
}

func objectFields(payload json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(payload) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func canonical(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newerSide(localNewer bool) Side {
	if localNewer {
		return SideLocal
	}
	return SideRemote
}
