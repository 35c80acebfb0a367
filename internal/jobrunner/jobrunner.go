// Package jobrunner implements the Async Job Runner (spec §4.9,
// component K): fire-and-forget background knowledge-generation and
// refinement jobs that write only to the repository, never to the
// synchronous response.
package jobrunner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/common"
	"github.com/ternarybob/extractionengine/internal/interfaces"
	"github.com/ternarybob/extractionengine/internal/jobstate"
	"github.com/ternarybob/extractionengine/internal/model"
)

// JobKind names the two background knowledge jobs spec §4.9 defines.
type JobKind string

const (
	JobKindGenerate JobKind = "generate_v1"
	JobKindRefine   JobKind = "refine"
)

// Runner dispatches generate_v1 and refine jobs onto a bounded worker
// pool, using a jobstate.Tracker to enforce at most one active job per
// (label, job_kind).
type Runner struct {
	tracker    *jobstate.Tracker
	repository interfaces.Repository
	llm        interfaces.LLMExtractor
	parserGen  interfaces.ParserGenerator
	validGen   interfaces.ValidationGenerator
	logger     arbor.ILogger

	work chan func()
}

// New returns a Runner with a worker pool of the given size. Background
// jobs never block the caller that spawned them (spec §4.9).
func New(
	tracker *jobstate.Tracker,
	repository interfaces.Repository,
	llm interfaces.LLMExtractor,
	parserGen interfaces.ParserGenerator,
	validGen interfaces.ValidationGenerator,
	logger arbor.ILogger,
	workerConcurrency int,
) *Runner {
	if workerConcurrency <= 0 {
		workerConcurrency = 1
	}

	r := &Runner{
		tracker:    tracker,
		repository: repository,
		llm:        llm,
		parserGen:  parserGen,
		validGen:   validGen,
		logger:     logger,
		work:       make(chan func(), 256),
	}

	for i := 0; i < workerConcurrency; i++ {
		common.SafeGo(logger, "jobrunner-worker", r.drain)
	}

	return r
}

func (r *Runner) drain() {
	for fn := range r.work {
		fn()
	}
}

// EnqueueGenerate implements interfaces.JobRunner: runs LLM extract_all
// with no deadline (it is a background job), then authors and publishes
// version 1 of the label's knowledge. Returns false if a job for this
// label is already active (spec §4.9 idempotence).
func (r *Runner) EnqueueGenerate(label string, schema model.Schema, text string) bool {
	claimed, err := r.tracker.TryBegin(label, string(JobKindGenerate))
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("label", label).Msg("failed to claim generate_v1 job slot")
		}
		return false
	}
	if !claimed {
		return false
	}

	r.work <- func() {
		jobErr := r.runGenerate(label, schema, text, 1)
		if finishErr := r.tracker.Finish(label, string(JobKindGenerate), jobErr); finishErr != nil && r.logger != nil {
			r.logger.Warn().Err(finishErr).Str("label", label).Msg("failed to release generate_v1 job slot")
		}
	}
	return true
}

// EnqueuePublish implements interfaces.JobRunner: skips extract_all
// entirely and authors/publishes version 1 directly from gabarito, a
// record the caller already paid for synchronously (spec §4.10 Path 4).
// Shares the generate_v1 job slot with EnqueueGenerate since the two are
// the same logical job, differing only in whether the gabarito is
// already in hand.
func (r *Runner) EnqueuePublish(label string, schema model.Schema, text string, gabarito model.FieldRecord) bool {
	claimed, err := r.tracker.TryBegin(label, string(JobKindGenerate))
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("label", label).Msg("failed to claim generate_v1 job slot")
		}
		return false
	}
	if !claimed {
		return false
	}

	r.work <- func() {
		jobErr := r.publish(context.Background(), label, schema, text, gabarito, 1)
		if finishErr := r.tracker.Finish(label, string(JobKindGenerate), jobErr); finishErr != nil && r.logger != nil {
			r.logger.Warn().Err(finishErr).Str("label", label).Msg("failed to release generate_v1 job slot")
		}
	}
	return true
}

// EnqueueRefine implements interfaces.JobRunner: uses corrected as a
// fresh gabarito to regenerate the label's packs at version+1.
func (r *Runner) EnqueueRefine(label string, schema model.Schema, text string, corrected model.FieldRecord) bool {
	claimed, err := r.tracker.TryBegin(label, string(JobKindRefine))
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("label", label).Msg("failed to claim refine job slot")
		}
		return false
	}
	if !claimed {
		return false
	}

	r.work <- func() {
		jobErr := r.runRefine(label, schema, text, corrected)
		if finishErr := r.tracker.Finish(label, string(JobKindRefine), jobErr); finishErr != nil && r.logger != nil {
			r.logger.Warn().Err(finishErr).Str("label", label).Msg("failed to release refine job slot")
		}
	}
	return true
}

func (r *Runner) runGenerate(label string, schema model.Schema, text string, version int) error {
	ctx := context.Background()

	gabarito, err := r.llm.ExtractAll(ctx, schema, text)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("label", label).Msg("generate_v1: extract_all failed, abandoning job")
		}
		return err
	}

	return r.publish(ctx, label, schema, text, gabarito, version)
}

func (r *Runner) runRefine(label string, schema model.Schema, text string, corrected model.FieldRecord) error {
	ctx := context.Background()

	existing, found, err := r.repository.Get(ctx, label)
	nextVersion := 1
	if err == nil && found {
		nextVersion = existing.Version + 1
	}

	return r.publish(ctx, label, schema, text, corrected, nextVersion)
}

// publish authors a parser pack and validation pack from gabarito and
// atomically publishes them at version (spec §4.2, §4.3, §4.6). A job
// that cannot be published leaves the repository unchanged (spec §7).
func (r *Runner) publish(ctx context.Context, label string, schema model.Schema, text string, gabarito model.FieldRecord, version int) error {
	parserPack := r.parserGen.Generate(schema, text, gabarito)
	validationPack := r.validGen.Generate(schema, gabarito)

	entry := &model.KnowledgeEntry{
		Label:          label,
		Version:        version,
		ParserPack:     parserPack,
		ValidationPack: validationPack,
		GabaritoDigest: digestGabarito(gabarito),
		CreatedAt:      time.Now(),
	}

	if err := r.repository.Put(ctx, label, entry); err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("label", label).Int("version", version).Msg("failed to publish knowledge entry")
		}
		return err
	}

	if r.logger != nil {
		r.logger.Info().Str("label", label).Int("version", version).Int("parser_fields", len(parserPack)).Msg("published knowledge entry")
	}
	return nil
}

// digestGabarito derives a stable content digest for a gabarito, used
// only as a provenance breadcrumb on the published entry (spec §3
// "gabarito_digest").
func digestGabarito(record model.FieldRecord) string {
	data, _ := json.Marshal(record)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
