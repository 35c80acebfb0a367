package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/extractionengine/internal/model"
)

func newTestRepo(t *testing.T) *FilesystemRepository {
	t.Helper()
	root := t.TempDir()
	repo, err := New(root, nil)
	require.NoError(t, err)
	return repo
}

func TestPutThenGetRoundTrips(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := &model.KnowledgeEntry{
		Label:          "invoice-acme",
		Version:        1,
		ParserPack:     model.ParserPack{{Field: "total", Pattern: `Total:\s*(\d+)`}},
		ValidationPack: model.ValidationPack{"total": {Kind: model.PredicateNonEmpty}},
		GabaritoDigest: "abc123",
		CreatedAt:      time.Now(),
	}

	require.NoError(t, repo.Put(ctx, entry.Label, entry))

	got, found, err := repo.Get(ctx, entry.Label)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry.Label, got.Label)
	assert.Equal(t, entry.Version, got.Version)
	assert.Equal(t, entry.ParserPack, got.ParserPack)
}

func TestGetOnUnknownLabelIsACleanMiss(t *testing.T) {
	repo := newTestRepo(t)
	_, found, err := repo.Get(context.Background(), "never-seen")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestPutIsNoOpWhenVersionNotStrictlyGreater(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	label := "invoice-acme"

	v1 := &model.KnowledgeEntry{Label: label, Version: 1, CreatedAt: time.Now()}
	require.NoError(t, repo.Put(ctx, label, v1))

	// Same version again: must not overwrite or error.
	stale := &model.KnowledgeEntry{Label: label, Version: 1, GabaritoDigest: "different", CreatedAt: time.Now()}
	require.NoError(t, repo.Put(ctx, label, stale))

	got, found, err := repo.Get(ctx, label)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, got.GabaritoDigest, "stale same-version put must not have taken effect")

	// Lower version: also a no-op.
	older := &model.KnowledgeEntry{Label: label, Version: 0, CreatedAt: time.Now()}
	require.NoError(t, repo.Put(ctx, label, older))

	got, _, _ = repo.Get(ctx, label)
	assert.Equal(t, 1, got.Version)

	// Strictly greater version publishes.
	v2 := &model.KnowledgeEntry{Label: label, Version: 2, GabaritoDigest: "v2", CreatedAt: time.Now()}
	require.NoError(t, repo.Put(ctx, label, v2))

	got, _, _ = repo.Get(ctx, label)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "v2", got.GabaritoDigest)
}

func TestGetQuarantinesStructurallyInvalidEntryAndReportsAMiss(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	label := "broken-label"

	entry := &model.KnowledgeEntry{Label: label, Version: 1, CreatedAt: time.Now()}
	require.NoError(t, repo.Put(ctx, label, entry))

	dir := repo.labelDir(label)
	metaPath := filepath.Join(dir, "meta.v1.json")
	require.NoError(t, os.WriteFile(metaPath, []byte("{not valid json"), 0644))

	got, found, err := repo.Get(ctx, label)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)

	// The offending file must be renamed aside, not deleted.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var sawQuarantined bool
	for _, e := range entries {
		if ok, _ := filepath.Match("meta.v1.json.corrupt.*", e.Name()); ok {
			sawQuarantined = true
		}
	}
	assert.True(t, sawQuarantined, "corrupt file should be renamed with a .corrupt.<ts> suffix, not deleted")
}

func TestClearRemovesOnlyTheCurrentPointer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	label := "invoice-acme"

	entry := &model.KnowledgeEntry{Label: label, Version: 1, CreatedAt: time.Now()}
	require.NoError(t, repo.Put(ctx, label, entry))
	require.NoError(t, repo.Clear(ctx, label))

	_, found, err := repo.Get(ctx, label)
	assert.NoError(t, err)
	assert.False(t, found)

	// Historical version file must still exist on disk.
	_, err = os.Stat(filepath.Join(repo.labelDir(label), "meta.v1.json"))
	assert.NoError(t, err)
}

func TestPutRejectsPatternThatFailsToCompile(t *testing.T) {
	repo := newTestRepo(t)
	entry := &model.KnowledgeEntry{
		Label:      "bad-pattern",
		Version:    1,
		ParserPack: model.ParserPack{{Field: "total", Pattern: `(unterminated[`}},
		CreatedAt:  time.Now(),
	}

	err := repo.Put(context.Background(), entry.Label, entry)
	assert.Error(t, err)

	_, found, getErr := repo.Get(context.Background(), entry.Label)
	require.NoError(t, getErr)
	assert.False(t, found, "a rejected put must not publish anything")
}

func TestPutRejectsPatternWithoutCaptureGroup(t *testing.T) {
	repo := newTestRepo(t)
	entry := &model.KnowledgeEntry{
		Label:      "no-capture",
		Version:    1,
		ParserPack: model.ParserPack{{Field: "total", Pattern: `Total:\s*\d+`}},
		CreatedAt:  time.Now(),
	}

	err := repo.Put(context.Background(), entry.Label, entry)
	assert.Error(t, err)

	_, found, getErr := repo.Get(context.Background(), entry.Label)
	require.NoError(t, getErr)
	assert.False(t, found)
}

func TestPurgeQuarantineDeletesOnlyEntriesPastRetention(t *testing.T) {
	repo := newTestRepo(t)
	dir := repo.labelDir("some-label")
	require.NoError(t, os.MkdirAll(dir, 0755))

	oldFile := filepath.Join(dir, "meta.v1.json.corrupt.1")
	require.NoError(t, os.WriteFile(oldFile, []byte("{}"), 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, old, old))

	recentFile := filepath.Join(dir, "meta.v2.json.corrupt.2")
	require.NoError(t, os.WriteFile(recentFile, []byte("{}"), 0644))

	deleted, err := repo.PurgeQuarantine(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}
