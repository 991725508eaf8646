package diskstore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func crashRecord(i int) models.Record {
	return models.Record{
		ID:        fmt.Sprintf("crash-%03d", i),
		Kind:      models.KindCrash,
		CreatedAt: time.Date(2025, 6, 1, 8, 0, i, 0, time.UTC),
		Crash: &models.CrashPayload{
			Type:      models.CrashException,
			Name:      "NSRangeException",
			Reason:    "index out of bounds",
			CallStack: []string{"frame 0", "frame 1"},
		},
	}
}

func TestSaveAndLoadAllOldestFirst(t *testing.T) {
	s, err := NewStore(t.TempDir(), models.KindCrash, 10, zap.NewNop())
	require.NoError(t, err)

	// save out of order; load must come back oldest first
	require.NoError(t, s.Save(crashRecord(2)))
	require.NoError(t, s.Save(crashRecord(0)))
	require.NoError(t, s.Save(crashRecord(1)))

	records, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "crash-000", records[0].ID)
	assert.Equal(t, "crash-001", records[1].ID)
	assert.Equal(t, "crash-002", records[2].ID)
	assert.Equal(t, "NSRangeException", records[0].Crash.Name)
}

func TestPruneKeepsNewestWithinWindow(t *testing.T) {
	s, err := NewStore(t.TempDir(), models.KindCrash, 10, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		require.NoError(t, s.Save(crashRecord(i)))
	}

	assert.Equal(t, 10, s.Count())

	records, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 10)
	assert.Equal(t, "crash-004", records[0].ID)
	assert.Equal(t, "crash-013", records[9].ID)
}

func TestRemoveByRecordID(t *testing.T) {
	s, err := NewStore(t.TempDir(), models.KindCrash, 10, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save(crashRecord(0)))
	require.NoError(t, s.Save(crashRecord(1)))

	require.NoError(t, s.Remove("crash-000"))
	assert.Equal(t, 1, s.Count())

	// removing an unknown id is not an error
	require.NoError(t, s.Remove("crash-999"))
}

func TestLoadAllSkipsCorruptAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, models.KindCrash, 10, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save(crashRecord(0)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00000000000000000001-bad.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-12345"), []byte("partial"), 0o644))

	records, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "crash-000", records[0].ID)

	// the corrupt file was discarded
	_, statErr := os.Stat(filepath.Join(dir, "00000000000000000001-bad.json"))
	assert.True(t, os.IsNotExist(statErr))
}
