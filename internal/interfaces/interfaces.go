// Package interfaces defines the contracts the orchestrator depends on.
// Concrete implementations (pdfcpu text extraction, Claude/Gemini LLM
// calls, the filesystem parser repository) live in their own packages and
// are wired in by cmd/extractionengine/main.go; nothing in internal/orchestrator
// imports a concrete SDK directly.
package interfaces

import (
	"context"

	"github.com/ternarybob/extractionengine/internal/model"
)

// TextSource converts raw PDF bytes into a deterministic textual
// representation (spec §6 "Text-source interface"). Implementations must
// be deterministic; whitespace normalization is acceptable drift.
type TextSource interface {
	ExtractText(ctx context.Context, pdfBytes []byte) (string, error)
}

// LLMExtractor is the remote language-model contract (spec §4.8). Both
// operations must honor ctx cancellation and never report it as an error:
// on deadline expiry ExtractAll returns an empty field record, and
// ExtractMissing returns partial with no fields added.
type LLMExtractor interface {
	ExtractAll(ctx context.Context, schema model.Schema, text string) (model.FieldRecord, error)
	ExtractMissing(ctx context.Context, schema model.Schema, text string, partial model.FieldRecord) (model.FieldRecord, error)
}

// Repository is the content-addressed, versioned knowledge store (spec
// §4.6). Put is a no-op if version is not strictly greater than the
// existing live version. Get reports a miss or a quarantined entry as
// found == false.
type Repository interface {
	Get(ctx context.Context, label string) (*model.KnowledgeEntry, bool, error)
	Put(ctx context.Context, label string, entry *model.KnowledgeEntry) error
	Clear(ctx context.Context, label string) error
}

// Watchdog tracks cumulative elapsed time against a batch budget and
// yields per-item deadlines (spec §4.7).
type Watchdog interface {
	BeginItem() float64
	EndItem(elapsedSeconds float64)
	Remaining() float64
	Exhausted() bool
}

// JobRunner enqueues fire-and-forget background knowledge jobs (spec
// §4.9). Enqueue is idempotent: a second enqueue for the same (label,
// kind) while one is active is a no-op and returns false.
type JobRunner interface {
	EnqueueGenerate(label string, schema model.Schema, text string) bool
	// EnqueuePublish authors and publishes version 1 of a label's knowledge
	// from a gabarito the caller already obtained, skipping a second
	// extract_all call (spec §4.10 Path 4: "using the LLM result as
	// gabarito").
	EnqueuePublish(label string, schema model.Schema, text string, gabarito model.FieldRecord) bool
	EnqueueRefine(label string, schema model.Schema, text string, corrected model.FieldRecord) bool
}

// HeuristicExtractor is the label-agnostic rule engine (spec §4.1).
type HeuristicExtractor interface {
	Extract(schema model.Schema, text string) model.FieldRecord
}

// ParserGenerator authors a parser pack from a verified gabarito (spec
// §4.2).
type ParserGenerator interface {
	Generate(schema model.Schema, text string, gabarito model.FieldRecord) model.ParserPack
}

// ValidationGenerator reverse-engineers a validation pack from a gabarito
// alone (spec §4.3).
type ValidationGenerator interface {
	Generate(schema model.Schema, gabarito model.FieldRecord) model.ValidationPack
}

// ParserExecutor applies a parser pack to text (spec §4.4).
type ParserExecutor interface {
	Execute(pack model.ParserPack, text string) model.FieldRecord
}

// ConfidenceCalculator scores a field record against a validation pack
// (spec §4.5).
type ConfidenceCalculator interface {
	Score(schema model.Schema, record model.FieldRecord, pack model.ValidationPack) (score float64, failing []string)
}

// AuditSink persists the batch-output annotations spec §6 names (path,
// elapsed, confidence, cost) past the lifetime of the process that
// produced them — a supplement beyond the mandatory spec, not a
// replacement for the Repository.
type AuditSink interface {
	RecordItem(ctx context.Context, result model.ItemResult) error
}
