package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/jobstate"
	"github.com/ternarybob/extractionengine/internal/model"
	"github.com/ternarybob/extractionengine/internal/repository"
	badgerdb "github.com/ternarybob/extractionengine/internal/storage/badger"
)

func TestRunSweepReleasesStaleJobsAndPurgesQuarantine(t *testing.T) {
	logger := arbor.NewLogger()

	db, err := badgerdb.Open(t.TempDir()+"/state", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tracker := jobstate.NewTracker(db, logger)

	repoRoot := t.TempDir()
	repo, err := repository.New(repoRoot, logger)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "label-a", &model.KnowledgeEntry{Label: "label-a", Version: 1, CreatedAt: time.Now()}))

	dir := filepath.Join(repoRoot, "label-a")
	entries, err := os.ReadDir(repoRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	dir = filepath.Join(repoRoot, entries[0].Name())

	oldQuarantineFile := filepath.Join(dir, "meta.v1.json.corrupt.1")
	require.NoError(t, os.WriteFile(oldQuarantineFile, []byte("{}"), 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldQuarantineFile, old, old))

	claimed, err := tracker.TryBegin("label-a", "generate_v1")
	require.NoError(t, err)
	require.True(t, claimed)

	janitor := New(tracker, repo, logger, -1*time.Second, 24*time.Hour)
	janitor.runSweep()

	stale, err := tracker.StaleActive(-1 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, stale, "runSweep must release jobs past the stale threshold")

	_, statErr := os.Stat(oldQuarantineFile)
	assert.True(t, os.IsNotExist(statErr), "runSweep must purge quarantine entries past retention")
}
