// Package heuristic implements the Heuristic Extractor (spec §4.1): a
// static, label-agnostic catalogue of regexes for common structured
// tokens, used as the zero-cost first pass on cold (repository-miss)
// documents.
package heuristic

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/extractionengine/internal/model"
)

// rule pairs a compiled pattern with a validator that rejects
// syntactically invalid matches (spec §4.1: "must never return a
// syntactically invalid value").
type rule struct {
	name    string
	pattern *regexp.Regexp
	valid   func(string) bool
}

var dateFormats = []string{
	"2006-01-02", "02/01/2006", "01/02/2006", "02-01-2006",
	"2 January 2006", "January 2, 2006", "02.01.2006",
}

func isParsableDate(s string) bool {
	for _, layout := range dateFormats {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

var rules = []rule{
	{
		name:    "date",
		pattern: regexp.MustCompile(`\b(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}\s+[A-Za-z]+\s+\d{4}|[A-Za-z]+\s+\d{1,2},\s*\d{4})\b`),
		valid:   isParsableDate,
	},
	{
		name:    "currency",
		pattern: regexp.MustCompile(`(?:R\$|US\$|\$|€|£)\s*(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?)`),
		valid: func(s string) bool {
			cleaned := strings.NewReplacer(".", "", ",", ".").Replace(s)
			_, err := strconv.ParseFloat(cleaned, 64)
			return err == nil
		},
	},
	{
		name:    "email",
		pattern: regexp.MustCompile(`([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`),
		valid:   func(s string) bool { return strings.Count(s, "@") == 1 },
	},
	{
		name:    "phone",
		pattern: regexp.MustCompile(`(\+?\d{1,3}[\s.\-]?\(?\d{2,4}\)?[\s.\-]?\d{3,5}[\s.\-]?\d{3,5})`),
		valid: func(s string) bool {
			digits := 0
			for _, r := range s {
				if r >= '0' && r <= '9' {
					digits++
				}
			}
			return digits >= 7 && digits <= 15
		},
	},
	{
		name:    "national_id",
		pattern: regexp.MustCompile(`\b(\d{3}\.\d{3}\.\d{3}-\d{2}|\d{2}\.\d{3}\.\d{3}-\d|\d{9,11})\b`),
		valid:   func(s string) bool { return len(s) > 0 },
	},
	{
		name:    "postal_code",
		pattern: regexp.MustCompile(`\b(\d{5}-\d{3}|\d{5}|[A-Za-z]\d[A-Za-z][\s-]?\d[A-Za-z]\d)\b`),
		valid:   func(s string) bool { return len(s) > 0 },
	},
}

// Extractor applies the fixed catalogue of regexes to text, label-
// agnostic and schema-aware only for the enumerated-set case.
type Extractor struct{}

// NewExtractor returns a stateless heuristic Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract runs the rule catalogue against text for every field in schema.
// It never fails: unrecognized fields are returned as null. Runs in
// O(|text|*|fields|) and is expected to complete in well under 100ms for
// typical document sizes.
func (e *Extractor) Extract(schema model.Schema, text string) model.FieldRecord {
	record := model.NewFieldRecord(schema)

	for field, description := range schema {
		if enumValue, ok := matchEnumeration(description, text); ok {
			record.Set(field, enumValue)
			continue
		}

		if value, ok := matchByFieldHint(field, description, text); ok {
			record.Set(field, value)
		}
	}

	return record
}

// matchByFieldHint picks the best-fitting rule for a field by looking at
// its name and description, falling back to trying every rule in order
// and keeping the first valid hit.
func matchByFieldHint(field, description, text string) (string, bool) {
	hint := strings.ToLower(field + " " + description)

	ordered := rules
	switch {
	case strings.Contains(hint, "date"), strings.Contains(hint, "data"):
		ordered = reorder(rules, "date")
	case strings.Contains(hint, "email"):
		ordered = reorder(rules, "email")
	case strings.Contains(hint, "phone"), strings.Contains(hint, "tel"):
		ordered = reorder(rules, "phone")
	case strings.Contains(hint, "cep"), strings.Contains(hint, "postal"), strings.Contains(hint, "zip"):
		ordered = reorder(rules, "postal_code")
	case strings.Contains(hint, "cpf"), strings.Contains(hint, "cnpj"), strings.Contains(hint, "ssn"), strings.Contains(hint, " id"):
		ordered = reorder(rules, "national_id")
	case strings.Contains(hint, "valor"), strings.Contains(hint, "price"), strings.Contains(hint, "amount"), strings.Contains(hint, "salario"), strings.Contains(hint, "salary"):
		ordered = reorder(rules, "currency")
	}

	for _, r := range ordered {
		m := r.pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if r.valid(candidate) {
			return candidate, true
		}
	}

	return "", false
}

// reorder moves the rule named first to the front so the field-hinted
// rule is tried before the generic catalogue.
func reorder(in []rule, first string) []rule {
	out := make([]rule, 0, len(in))
	var head rule
	for _, r := range in {
		if r.name == first {
			head = r
			continue
		}
		out = append(out, r)
	}
	return append([]rule{head}, out...)
}

// enumerationPattern extracts a parenthesized comma-separated alternative
// list from a schema description, e.g. "role (ADVOGADO, ADVOGADA, JUIZ)".
var enumerationPattern = regexp.MustCompile(`\(([A-Za-zÀ-ÖØ-öø-ÿ0-9 ,_/-]+)\)`)

// matchEnumeration looks for a literal occurrence of any alternative the
// schema description enumerates, directly in the document text.
func matchEnumeration(description, text string) (string, bool) {
	m := enumerationPattern.FindStringSubmatch(description)
	if len(m) < 2 {
		return "", false
	}

	alternatives := strings.Split(m[1], ",")
	if len(alternatives) < 2 {
		return "", false
	}

	upperText := strings.ToUpper(text)
	for _, alt := range alternatives {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if strings.Contains(upperText, strings.ToUpper(alt)) {
			return alt, true
		}
	}

	return "", false
}
