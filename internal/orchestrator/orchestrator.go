// Package orchestrator implements the four-path decision tree (spec
// §4.10, component J): the hard engineering this system exists for. It
// routes each document through one of four execution paths based on
// repository cache state and confidence, dispatches the costly LLM call
// behind the Budget Watchdog, and spawns background knowledge jobs —
// never blocking the caller's response on them.
package orchestrator

import (
	"context"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/interfaces"
	"github.com/ternarybob/extractionengine/internal/model"
)

// Thresholds carries the four tunable knobs spec §6's "Environment"
// paragraph names.
type Thresholds struct {
	Accept               float64
	HeuristicFailure     float64
	PerItemBudgetSeconds float64
	Slack                float64
}

// Orchestrator wires every component (A, B, C, F, G, H, K) behind the
// decision tree; it never imports a concrete SDK, only the interfaces
// package.
type Orchestrator struct {
	textSource interfaces.TextSource
	heuristic  interfaces.HeuristicExtractor
	llm        interfaces.LLMExtractor
	repository interfaces.Repository
	executor   interfaces.ParserExecutor
	confidence interfaces.ConfidenceCalculator
	jobs       interfaces.JobRunner
	audit      interfaces.AuditSink
	logger     arbor.ILogger
	thresholds Thresholds
}

// WithAuditSink attaches an audit sink that records every processed
// item's annotations. Optional; nil is a safe no-op.
func (o *Orchestrator) WithAuditSink(sink interfaces.AuditSink) *Orchestrator {
	o.audit = sink
	return o
}

// New returns an Orchestrator. watchdog is supplied per-batch by the
// caller via Process, since the watchdog's cumulative state is scoped to
// one batch (spec §3 "Lifecycles").
func New(
	textSource interfaces.TextSource,
	heuristic interfaces.HeuristicExtractor,
	llm interfaces.LLMExtractor,
	repository interfaces.Repository,
	executor interfaces.ParserExecutor,
	confidence interfaces.ConfidenceCalculator,
	jobs interfaces.JobRunner,
	logger arbor.ILogger,
	thresholds Thresholds,
) *Orchestrator {
	return &Orchestrator{
		textSource: textSource,
		heuristic:  heuristic,
		llm:        llm,
		repository: repository,
		executor:   executor,
		confidence: confidence,
		jobs:       jobs,
		logger:     logger,
		thresholds: thresholds,
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validateSchema(schema model.Schema) error {
	if len(schema) == 0 {
		return ErrInvalidSchema
	}
	for field := range schema {
		if !identifierPattern.MatchString(field) {
			return ErrInvalidSchema
		}
	}
	return nil
}

// Process runs one document through the decision tree. It never returns
// an error except for InvalidSchema and TextSourceFailure (spec §7); all
// other failure modes degrade to partial data, annotated in the result.
func (o *Orchestrator) Process(ctx context.Context, req model.DocumentRequest, wd interfaces.Watchdog) model.ItemResult {
	started := time.Now()
	result := model.ItemResult{
		ItemIndex: req.ItemIndex,
		Label:     req.Label,
		CreatedAt: started,
	}

	if err := validateSchema(req.Schema); err != nil {
		result.Err = ErrInvalidSchema
		return result
	}

	text, err := o.textSource.ExtractText(ctx, req.PDFBytes)
	if err != nil {
		result.Err = ErrTextSourceFailure
		return result
	}

	entry, found, err := o.repository.Get(ctx, req.Label)
	if err != nil {
		// Repository read failures outside of structural corruption (which
		// Get already converts to a clean miss) are treated the same way:
		// proceed cold rather than fail the item.
		found = false
	}

	if found {
		o.runCached(ctx, req, text, entry, wd, &result)
	} else {
		o.runCold(ctx, req, text, wd, &result)
	}

	result.ElapsedSeconds = time.Since(started).Seconds()
	wd.EndItem(result.ElapsedSeconds)
	return result
}

// runCached implements Path 2 and Path 3 (spec §4.10).
func (o *Orchestrator) runCached(ctx context.Context, req model.DocumentRequest, text string, entry *model.KnowledgeEntry, wd interfaces.Watchdog, result *model.ItemResult) {
	record := o.executor.Execute(entry.ParserPack, text)
	score, failing := o.confidence.Score(req.Schema, record, entry.ValidationPack)

	if score >= o.thresholds.Accept {
		result.Fields = record
		result.Path = model.PathCachedHighConfidence
		result.Confidence = score
		result.CacheHit = true
		result.FailedFields = failing
		return
	}

	// Path 3: ask the LLM only about the fields that failed validation,
	// bounded by the watchdog deadline.
	deadline := wd.BeginItem()
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(deadline*float64(time.Second)))
	defer cancel()

	synthetic := record.Clone()
	for _, field := range failing {
		synthetic.SetNull(field)
	}

	merged, err := o.llm.ExtractMissing(callCtx, req.Schema, text, synthetic)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn().Err(err).Str("label", req.Label).Msg("extract_missing failed, returning parser-only record")
		}
		merged = record
	}

	mergedScore, mergedFailing := o.confidence.Score(req.Schema, merged, entry.ValidationPack)

	result.Fields = merged
	result.Path = model.PathCachedLowConfidence
	result.Confidence = mergedScore
	result.CacheHit = true
	result.FailedFields = mergedFailing
	result.EstimatedCost = estimateCost(len(failing))

	if o.jobs != nil {
		o.jobs.EnqueueRefine(req.Label, req.Schema, text, merged)
	}
}

// runCold implements Path 1 and Path 4 (spec §4.10).
func (o *Orchestrator) runCold(ctx context.Context, req model.DocumentRequest, text string, wd interfaces.Watchdog, result *model.ItemResult) {
	heuristicRecord := o.heuristic.Extract(req.Schema, text)
	failureRate := heuristicFailureRate(req.Schema, heuristicRecord)

	if failureRate < o.thresholds.HeuristicFailure {
		// Path 1: heuristic is good enough. Return immediately; learn in
		// the background without an LLM call on this request's record —
		// the background job calls extract_all itself, unconstrained by
		// this request's deadline.
		result.Fields = heuristicRecord
		result.Path = model.PathColdHeuristicSufficient
		result.Confidence = 1 - failureRate
		result.CacheHit = false

		if o.jobs != nil {
			o.jobs.EnqueueGenerate(req.Label, req.Schema, text)
		}
		return
	}

	// Path 4: heuristic insufficient. Call extract_all synchronously,
	// bounded by the watchdog deadline.
	deadline := wd.BeginItem()
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(deadline*float64(time.Second)))
	defer cancel()

	llmRecord, err := o.llm.ExtractAll(callCtx, req.Schema, text)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn().Err(err).Str("label", req.Label).Msg("extract_all failed, falling back to heuristic record")
		}
		llmRecord = model.FieldRecord{}
	}

	merged := llmRecord.Clone()
	for field := range req.Schema {
		if _, ok := merged.Get(field); ok {
			continue
		}
		if hv, ok := heuristicRecord.Get(field); ok {
			merged.Set(field, hv)
		}
	}

	result.Fields = merged
	result.Path = model.PathColdHeuristicInsufficient
	result.Confidence = 1 - heuristicFailureRate(req.Schema, merged)
	result.CacheHit = false
	result.EstimatedCost = estimateCost(len(req.Schema))

	if o.jobs != nil && len(llmRecord) > 0 {
		// Reuse llmRecord as the gabarito rather than enqueuing a plain
		// generate job: that would have the background worker call
		// extract_all a second time for the same label, doubling LLM
		// spend on every Path 4 item (spec §4.10 Path 4).
		o.jobs.EnqueuePublish(req.Label, req.Schema, text, llmRecord)
	}
}

func heuristicFailureRate(schema model.Schema, record model.FieldRecord) float64 {
	if len(schema) == 0 {
		return 1
	}
	nullCount := 0
	for field := range schema {
		if _, ok := record.Get(field); !ok {
			nullCount++
		}
	}
	return float64(nullCount) / float64(len(schema))
}

// estimateCost is a coarse, monotonic proxy for LLM spend: proportional
// to the number of fields an LLM call had to resolve. Paths 1 and 2 never
// invoke the LLM and always report zero (spec §6 "Batch output").
func estimateCost(fieldsResolved int) float64 {
	const costPerField = 0.002
	return float64(fieldsResolved) * costPerField
}
