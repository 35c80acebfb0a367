// Package maintenance runs the periodic housekeeping spec §7 requires:
// releasing active job markers abandoned by a crashed worker, and
// permanently deleting repository entries quarantined past their
// retention window.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/jobstate"
	"github.com/ternarybob/extractionengine/internal/repository"
)

// Janitor schedules the two sweeps on a cron expression.
type Janitor struct {
	tracker             *jobstate.Tracker
	repo                *repository.FilesystemRepository
	logger              arbor.ILogger
	staleJobThreshold   time.Duration
	quarantineRetention time.Duration
	cron                *cron.Cron
}

// New returns a Janitor. It does not start the schedule; call Start.
func New(tracker *jobstate.Tracker, repo *repository.FilesystemRepository, logger arbor.ILogger, staleJobThreshold, quarantineRetention time.Duration) *Janitor {
	return &Janitor{
		tracker:             tracker,
		repo:                repo,
		logger:              logger,
		staleJobThreshold:   staleJobThreshold,
		quarantineRetention: quarantineRetention,
		cron:                cron.New(),
	}
}

// Start registers the sweep on expr (a standard five-field cron
// expression, e.g. config's Jobs.MaintenanceCron) and begins running it.
func (j *Janitor) Start(expr string) error {
	_, err := j.cron.AddFunc(expr, j.runSweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep to finish,
// giving up once ctx is done so a wedged sweep cannot block shutdown
// indefinitely.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		if j.logger != nil {
			j.logger.Warn().Msg("maintenance shutdown deadline exceeded, sweep may still be running")
		}
	}
}

func (j *Janitor) runSweep() {
	j.releaseStaleJobs()
	j.purgeQuarantine()
}

// releaseStaleJobs implements spec §8 invariant 6's liveness half: a
// worker that died mid-job must not leave its (label, job_kind) pair
// permanently stuck active.
func (j *Janitor) releaseStaleJobs() {
	stale, err := j.tracker.StaleActive(j.staleJobThreshold)
	if err != nil {
		if j.logger != nil {
			j.logger.Warn().Err(err).Msg("failed to scan for stale jobs")
		}
		return
	}

	for _, record := range stale {
		if err := j.tracker.ReleaseStale(record); err != nil {
			if j.logger != nil {
				j.logger.Warn().Err(err).Str("label", record.Label).Str("kind", record.Kind).Msg("failed to release stale job")
			}
			continue
		}
		if j.logger != nil {
			j.logger.Info().Str("label", record.Label).Str("kind", record.Kind).Msg("released stale job marker")
		}
	}
}

// purgeQuarantine implements spec §7's retention policy: quarantined
// files are kept for inspection, then permanently deleted once older
// than the configured window.
func (j *Janitor) purgeQuarantine() {
	deleted, err := j.repo.PurgeQuarantine(context.Background(), j.quarantineRetention)
	if err != nil {
		if j.logger != nil {
			j.logger.Warn().Err(err).Msg("failed to purge quarantine")
		}
		return
	}
	if deleted > 0 && j.logger != nil {
		j.logger.Info().Int("deleted", deleted).Msg("purged quarantined repository entries")
	}
}
