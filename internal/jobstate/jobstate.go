// Package jobstate tracks in-flight Async Job Runner jobs so that at
// most one job is active per (label, job_kind) at any instant (spec
// §4.9, §8 invariant 6). Backed by badgerhold, adapted from the
// teacher's job storage query style.
package jobstate

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	badgerdb "github.com/ternarybob/extractionengine/internal/storage/badger"
)

// Status is the lifecycle state of a tracked job.
type Status string

const (
	StatusActive Status = "active"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Record is the badgerhold-persisted bookkeeping entry for one
// (label, job_kind) job attempt.
type Record struct {
	ID        string `boltholdKey:"ID"`
	Label     string `boltholdIndex:"Label"`
	Kind      string `boltholdIndex:"Kind"`
	Status    Status `boltholdIndex:"Status"`
	StartedAt time.Time
	UpdatedAt time.Time
}

func recordID(label, kind string) string {
	return label + "|" + kind
}

// Tracker claims and releases (label, job_kind) slots.
type Tracker struct {
	db     *badgerdb.DB
	logger arbor.ILogger
}

// NewTracker returns a Tracker backed by db.
func NewTracker(db *badgerdb.DB, logger arbor.ILogger) *Tracker {
	return &Tracker{db: db, logger: logger}
}

// TryBegin attempts to claim the (label, kind) slot. Returns false
// without error if a job for that pair is already active — the caller
// must treat a second concurrent enqueue as a no-op (spec §4.9, §8
// invariant 6).
func (t *Tracker) TryBegin(label, kind string) (bool, error) {
	id := recordID(label, kind)

	var existing Record
	err := t.db.Store().Get(id, &existing)
	if err == nil && existing.Status == StatusActive {
		return false, nil
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return false, fmt.Errorf("failed to check job state: %w", err)
	}

	now := time.Now()
	record := Record{
		ID:        id,
		Label:     label,
		Kind:      kind,
		Status:    StatusActive,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := t.db.Store().Upsert(id, &record); err != nil {
		return false, fmt.Errorf("failed to claim job slot: %w", err)
	}
	return true, nil
}

// Finish marks a (label, kind) job as done or failed, freeing the slot
// for a future enqueue.
func (t *Tracker) Finish(label, kind string, jobErr error) error {
	id := recordID(label, kind)

	status := StatusDone
	if jobErr != nil {
		status = StatusFailed
	}

	var existing Record
	if err := t.db.Store().Get(id, &existing); err != nil {
		return fmt.Errorf("failed to load job state for finish: %w", err)
	}

	existing.Status = status
	existing.UpdatedAt = time.Now()
	return t.db.Store().Update(id, &existing)
}

// StaleActive returns jobs that have been active longer than threshold —
// the maintenance janitor's signal that a worker crashed mid-job and
// leaked its slot.
func (t *Tracker) StaleActive(threshold time.Duration) ([]Record, error) {
	cutoff := time.Now().Add(-threshold)

	var records []Record
	query := badgerhold.Where("Status").Eq(StatusActive).And("StartedAt").Lt(cutoff)
	if err := t.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query stale jobs: %w", err)
	}
	return records, nil
}

// ReleaseStale force-frees a stale slot so a later request can re-enqueue
// knowledge generation for the same label.
func (t *Tracker) ReleaseStale(r Record) error {
	r.Status = StatusFailed
	r.UpdatedAt = time.Now()
	return t.db.Store().Update(r.ID, &r)
}
