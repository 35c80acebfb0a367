// Package parsergen implements the Parser Generator (spec §4.2): given a
// verified gabarito and its source text, it authors per-field regex
// patterns that are self-validated against that text before being
// emitted, never speculative.
package parsergen

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/extractionengine/internal/model"
)

// contextWindows are the preceding-context sizes tried in order, widest
// (most anchored, least likely to false-positive on sibling documents)
// first. A field whose value cannot be captured at any window width is
// omitted from the pack rather than emitted with an unanchored, risky
// pattern.
var contextWindows = []int{40, 20, 10, 0}

// Generator authors parser packs from a gabarito plus the text it was
// drawn from.
type Generator struct{}

// NewGenerator returns a stateless Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate implements spec §4.2. Fields whose gabarito value is null, or
// that cannot be captured at any anchoring width, are omitted — the
// runtime routes them through the LLM extractor instead.
func (g *Generator) Generate(schema model.Schema, text string, gabarito model.FieldRecord) model.ParserPack {
	var pack model.ParserPack

	// Deterministic iteration order: sort field names so the emitted pack
	// is stable across runs (only matters for diffability, not semantics).
	fields := make([]string, 0, len(schema))
	for field := range schema {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, ok := gabarito.Get(field)
		if !ok || value == "" {
			continue
		}

		pattern, found := buildCapturingPattern(text, value)
		if !found {
			continue
		}

		pack = append(pack, model.PatternEntry{Field: field, Pattern: pattern})
	}

	return pack
}

// buildCapturingPattern locates value in text and emits an anchored
// capturing regex, widening the anchor window until the pattern
// self-validates (spec §4.2 (ii)): applying it to text must yield a
// first capture equal to value.
func buildCapturingPattern(text, value string) (string, bool) {
	idx := strings.Index(text, value)
	if idx < 0 {
		// Case-insensitive fallback. The emitted pattern still quotes value
		// case-sensitively, so a value found only this way never
		// self-validates and the field is omitted.
		idx = strings.Index(strings.ToLower(text), strings.ToLower(value))
		if idx < 0 {
			return "", false
		}
	}

	for _, window := range contextWindows {
		start := idx - window
		if start < 0 {
			start = 0
		}
		context := text[start:idx]

		anchor := anchorPattern(context)
		if anchor == "" {
			continue
		}

		pattern := anchor + `(` + regexp.QuoteMeta(value) + `)`
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}

		if selfValidates(compiled, text, value) {
			return pattern, true
		}
	}

	return "", false
}

// anchorPattern turns a raw preceding-context slice into a loose regex
// prefix: literal non-whitespace runs are quoted, runs of whitespace
// become a flexible `\s+`, so the pattern survives minor layout drift
// between sibling documents of the same label.
func anchorPattern(context string) string {
	if strings.TrimSpace(context) == "" {
		return ""
	}

	fields := strings.Fields(context)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, regexp.QuoteMeta(f))
	}
	return strings.Join(parts, `\s+`) + `\s*`
}

// selfValidates re-runs the candidate pattern against the source text and
// checks the first match's first capture equals value exactly — the
// mandatory self-validation step before a pattern may be emitted.
func selfValidates(pattern *regexp.Regexp, text, value string) bool {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return false
	}
	return m[1] == value
}
