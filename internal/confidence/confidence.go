// Package confidence implements the Confidence Calculator (spec §4.5):
// scoring a field record against a validation pack, and the validation
// predicate evaluator itself (spec §4.3, §8 invariant 2).
package confidence

import (
	"strings"
	"unicode"

	"github.com/ternarybob/extractionengine/internal/model"
)

// Calculator scores field records against validation packs.
type Calculator struct{}

// NewCalculator returns a Calculator. It holds no state; every call is
// pure with respect to its arguments.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Score implements spec §4.5: the fraction of schema fields whose value
// is non-null and passes its predicate. A field with no predicate passes
// iff non-null. Returns the score and the names of fields that failed.
func (c *Calculator) Score(schema model.Schema, record model.FieldRecord, pack model.ValidationPack) (float64, []string) {
	if len(schema) == 0 {
		return 0, nil
	}

	passing := 0
	var failing []string

	for field := range schema {
		value, ok := record.Get(field)
		if !ok {
			failing = append(failing, field)
			continue
		}

		predicate, hasPredicate := pack[field]
		if !hasPredicate {
			passing++
			continue
		}

		if Evaluate(predicate, value) {
			passing++
		} else {
			failing = append(failing, field)
		}
	}

	return float64(passing) / float64(len(schema)), failing
}

// Evaluate applies a single predicate to a candidate value. It is total:
// every branch returns a bool, never panics, regardless of input content.
func Evaluate(p model.Predicate, value string) bool {
	switch p.Kind {
	case model.PredicateNonEmpty:
		return value != ""

	case model.PredicateLengthRange:
		n := len([]rune(value))
		if p.MinLength > 0 && n < p.MinLength {
			return false
		}
		if p.MaxLength > 0 && n > p.MaxLength {
			return false
		}
		return true

	case model.PredicateCharacterSet:
		return evaluateCharClass(p.CharClass, value)

	case model.PredicateEnumerated:
		for _, allowed := range p.AllowedValues {
			if allowed == value {
				return true
			}
		}
		return false

	case model.PredicateFormat:
		if p.Prefix != "" && !strings.HasPrefix(value, p.Prefix) {
			return false
		}
		if p.Suffix != "" && !strings.HasSuffix(value, p.Suffix) {
			return false
		}
		return true

	default:
		// Unknown/zero-value predicate kind: conservative failure, never
		// a panic or error.
		return false
	}
}

func evaluateCharClass(class model.CharacterClass, value string) bool {
	if value == "" {
		return false
	}

	hasDigit, hasLetter, hasOther := false, false, false
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsSpace(r):
			// whitespace never disqualifies a class match
		default:
			hasOther = true
		}
	}

	switch class {
	case model.CharClassDigits:
		return hasDigit && !hasLetter && !hasOther
	case model.CharClassLetters:
		return hasLetter && !hasDigit && !hasOther
	case model.CharClassMixed:
		return hasDigit && hasLetter && !hasOther
	default:
		return false
	}
}
