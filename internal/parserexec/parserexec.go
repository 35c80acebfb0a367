// Package parserexec implements the Parser Executor (spec §4.4): applies
// a parser pack to text, producing per-field candidate values.
package parserexec

import (
	"regexp"
	"time"

	"github.com/ternarybob/extractionengine/internal/model"
)

// compileTimeout bounds defensive regex compilation and matching; spec §9
// requires patterns to be "compiled defensively" since they are generated
// from and executed against untrusted text. Go's regexp package is
// RE2-based and cannot backtrack catastrophically, but a pattern or input
// pulled from a corrupt repository entry still runs under this bound
// rather than being trusted unconditionally.
const compileTimeout = 200 * time.Millisecond

// Executor applies parser packs to text. Stateless; safe for concurrent
// use across labels.
type Executor struct{}

// NewExecutor returns a stateless Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute implements spec §4.4: for each pack entry, apply the regex to
// text; the first match's first capture group is the value, absence of
// match yields null. Never mutates pack or text.
func (e *Executor) Execute(pack model.ParserPack, text string) model.FieldRecord {
	record := make(model.FieldRecord, len(pack))

	for _, entry := range pack {
		value, ok := matchOne(entry.Pattern, text)
		if ok {
			record.Set(entry.Field, value)
		} else {
			record.SetNull(entry.Field)
		}
	}

	return record
}

// matchOne runs a single pattern and returns its first capture. A pattern
// that fails to compile (corrupt repository entry) or that has no
// capture group is treated as a non-match rather than a panic. Matching
// itself runs under compileTimeout so a pathological pattern or input
// degrades a single field to null instead of stalling the whole item.
func matchOne(pattern, text string) (string, bool) {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}

	type outcome struct {
		value string
		ok    bool
	}
	done := make(chan outcome, 1)
	go func() {
		m := compiled.FindStringSubmatch(text)
		if len(m) < 2 {
			done <- outcome{}
			return
		}
		done <- outcome{value: m[1], ok: true}
	}()

	select {
	case o := <-done:
		return o.value, o.ok
	case <-time.After(compileTimeout):
		return "", false
	}
}
