package change

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutsync/internal/domain/changelog"
)

func TestWritePending(t *testing.T) {
	color.NoColor = true

	records := []changelog.ChangeRecord{
		{
			ID:             7,
			EntityType:     changelog.EntityStructure,
			EntityID:       "cabin-12",
			Operation:      changelog.OpUpdate,
			BaseVersion:    4,
			LocalTimestamp: time.Now(),
			SyncState:      changelog.StatePending,
		},
		{
			ID:             8,
			EntityType:     changelog.EntityStructure,
			EntityID:       "cabin-13",
			Operation:      changelog.OpCreate,
			LocalTimestamp: time.Now(),
			SyncState:      changelog.StateFailed,
			FailureReason:  "max retries exceeded",
			Retryable:      true,
		},
	}

	var out bytes.Buffer
	require.NoError(t, writePending(&out, records))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "Основа")
	assert.Contains(t, string(lines[1]), "v4")
	assert.Contains(t, string(lines[1]), "pending")
	assert.Contains(t, string(lines[2]), "v0")
	assert.Contains(t, string(lines[2]), "failed, повтор")
	assert.Contains(t, string(lines[2]), "max retries exceeded")
}
