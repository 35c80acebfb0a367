// Package validationgen implements the Validation Rule Generator (spec
// §4.3): given a gabarito alone (no source text), infer the tightest
// predicate justified by each single observed value.
package validationgen

import (
	"strings"
	"unicode"

	"github.com/ternarybob/extractionengine/internal/model"
)

// Generator infers validation packs from a gabarito.
type Generator struct{}

// NewGenerator returns a stateless Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate implements spec §4.3. Every emitted predicate must reject at
// least one plausible malformed input (spec: "weak predicates ... are
// forbidden") — inferCharClass and inferFormat below only fire when the
// single observed datum actually constrains something.
func (g *Generator) Generate(schema model.Schema, gabarito model.FieldRecord) model.ValidationPack {
	pack := make(model.ValidationPack, len(schema))

	for field, description := range schema {
		value, ok := gabarito.Get(field)
		if !ok || value == "" {
			continue
		}

		pack[field] = inferPredicate(description, value)
	}

	return pack
}

// inferPredicate picks the most specific predicate a single datum
// justifies, preferring (in order of specificity): enumerated set (when
// the schema description names alternatives), character class, fixed
// prefix/suffix, falling back to an exact length range.
func inferPredicate(description, value string) model.Predicate {
	if alts, ok := enumeratedAlternatives(description); ok {
		return model.Predicate{Kind: model.PredicateEnumerated, AllowedValues: alts}
	}

	if class, ok := inferCharClass(value); ok {
		return model.Predicate{Kind: model.PredicateCharacterSet, CharClass: class}
	}

	if prefix, suffix, ok := inferFormat(value); ok {
		return model.Predicate{Kind: model.PredicateFormat, Prefix: prefix, Suffix: suffix}
	}

	n := len([]rune(value))
	return model.Predicate{Kind: model.PredicateLengthRange, MinLength: n, MaxLength: n}
}

// enumeratedAlternatives extracts a parenthesized comma-separated
// alternative list from a schema description: the text between the first
// '(' and the first ')'. Unlike the heuristic extractor's enumeration
// pattern, it does not restrict which characters the alternatives contain.
func enumeratedAlternatives(description string) ([]string, bool) {
	start := strings.Index(description, "(")
	end := strings.Index(description, ")")
	if start < 0 || end < 0 || end <= start+1 {
		return nil, false
	}

	raw := strings.Split(description[start+1:end], ",")
	if len(raw) < 2 {
		return nil, false
	}

	out := make([]string, 0, len(raw))
	for _, alt := range raw {
		alt = strings.TrimSpace(alt)
		if alt != "" {
			out = append(out, alt)
		}
	}
	if len(out) < 2 {
		return nil, false
	}
	return out, true
}

// inferCharClass reports the restricted alphabet of value, if it
// uniformly belongs to exactly one of digits/letters/mixed. A value
// containing punctuation or symbols is left unclassified so the caller
// falls through to a format or length predicate instead of a class that
// would wrongly accept symbol-bearing lookalikes.
func inferCharClass(value string) (model.CharacterClass, bool) {
	hasDigit, hasLetter, hasOther := false, false, false
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		default:
			hasOther = true
		}
	}

	switch {
	case hasOther:
		return "", false
	case hasDigit && hasLetter:
		return model.CharClassMixed, true
	case hasDigit:
		return model.CharClassDigits, true
	case hasLetter:
		return model.CharClassLetters, true
	default:
		return "", false
	}
}

// inferFormat looks for a fixed non-alphanumeric prefix or suffix (e.g. a
// currency symbol, a trailing unit) that a single datum can justify.
func inferFormat(value string) (prefix, suffix string, ok bool) {
	runes := []rune(value)
	if len(runes) < 2 {
		return "", "", false
	}

	if !unicode.IsLetter(runes[0]) && !unicode.IsDigit(runes[0]) {
		return string(runes[0]), "", true
	}
	last := runes[len(runes)-1]
	if !unicode.IsLetter(last) && !unicode.IsDigit(last) {
		return "", string(last), true
	}

	return "", "", false
}
