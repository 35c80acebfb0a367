package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/model"
	badgerdb "github.com/ternarybob/extractionengine/internal/storage/badger"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	dir := t.TempDir() + "/state"
	db, err := badgerdb.Open(dir, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSink(db, arbor.NewLogger())
}

func TestRecordItemThenForLabelRoundTrips(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	result := model.ItemResult{
		ItemIndex:      0,
		Label:          "invoice-acme",
		Path:           model.PathCachedHighConfidence,
		ElapsedSeconds: 1.2,
		CacheHit:       true,
		Confidence:     0.95,
		CreatedAt:      time.Now(),
	}

	require.NoError(t, sink.RecordItem(ctx, result))

	entries, err := sink.ForLabel("invoice-acme", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "invoice-acme", entries[0].Label)
	assert.Equal(t, model.PathCachedHighConfidence.String(), entries[0].Path)
}

func TestForLabelReturnsMostRecentFirst(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := model.ItemResult{ItemIndex: i, Label: "invoice-acme", CreatedAt: time.Now()}
		require.NoError(t, sink.RecordItem(ctx, result))
	}

	entries, err := sink.ForLabel("invoice-acme", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].ItemIndex)
	assert.Equal(t, 0, entries[2].ItemIndex)
}

func TestForLabelRespectsLimit(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.RecordItem(ctx, model.ItemResult{ItemIndex: i, Label: "invoice-acme", CreatedAt: time.Now()}))
	}

	entries, err := sink.ForLabel("invoice-acme", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
