// Package auditlog persists the batch-output annotations (spec §6: path
// taken, elapsed seconds, cache hit/miss, confidence, estimated cost)
// past the lifetime of the process that produced them — the batch audit
// trail supplement, adapted from the teacher's append-only log storage
// with a sequence-keyed badgerhold store.
package auditlog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/extractionengine/internal/interfaces"
	"github.com/ternarybob/extractionengine/internal/model"
	badgerdb "github.com/ternarybob/extractionengine/internal/storage/badger"
)

var sequence uint64

// Entry is the persisted audit record for one processed batch item.
type Entry struct {
	Key            string `boltholdKey:"Key"`
	Label          string `boltholdIndex:"Label"`
	ItemIndex      int
	Path           string
	ElapsedSeconds float64
	CacheHit       bool
	Confidence     float64
	EstimatedCost  float64
	FailedFields   []string
	Failed         bool
	CreatedAt      time.Time
}

// Sink implements interfaces.AuditSink against a Badger-backed store.
type Sink struct {
	db     *badgerdb.DB
	logger arbor.ILogger
}

var _ interfaces.AuditSink = (*Sink)(nil)

// NewSink returns a Sink backed by db. The key sequence resumes after the
// highest key already stored, so entries written by an earlier process
// still sort before new ones.
func NewSink(db *badgerdb.DB, logger arbor.ILogger) *Sink {
	var latest []Entry
	if err := db.Store().Find(&latest, (&badgerhold.Query{}).SortBy("Key").Reverse().Limit(1)); err == nil && len(latest) == 1 {
		var last uint64
		if _, scanErr := fmt.Sscanf(latest[0].Key, "%d_", &last); scanErr == nil && last > atomic.LoadUint64(&sequence) {
			atomic.StoreUint64(&sequence, last)
		}
	}
	return &Sink{db: db, logger: logger}
}

// RecordItem implements interfaces.AuditSink: appends one entry per
// processed item, using a monotonically increasing sequence number as
// the key so entries sort chronologically without clock-skew risk.
func (s *Sink) RecordItem(ctx context.Context, result model.ItemResult) error {
	seq := atomic.AddUint64(&sequence, 1)
	key := fmt.Sprintf("%019d_%s_%d", seq, result.Label, result.ItemIndex)

	entry := Entry{
		Key:            key,
		Label:          result.Label,
		ItemIndex:      result.ItemIndex,
		Path:           result.Path.String(),
		ElapsedSeconds: result.ElapsedSeconds,
		CacheHit:       result.CacheHit,
		Confidence:     result.Confidence,
		EstimatedCost:  result.EstimatedCost,
		FailedFields:   result.FailedFields,
		Failed:         result.Err != nil,
		CreatedAt:      result.CreatedAt,
	}

	if err := s.db.Store().Insert(key, &entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ForLabel returns the audit history for label, most recent first — used
// to tune ACCEPT/HEURISTIC_FAILURE thresholds from observed behavior.
func (s *Sink) ForLabel(label string, limit int) ([]Entry, error) {
	query := badgerhold.Where("Label").Eq(label).SortBy("Key").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []Entry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	return entries, nil
}
