package validationgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/extractionengine/internal/confidence"
	"github.com/ternarybob/extractionengine/internal/model"
)

func TestGenerateInfersPredicateThatRejectsAMalformedInput(t *testing.T) {
	tests := []struct {
		name        string
		description string
		value       string
		badValue    string
	}{
		{"enumerated set", "role (ADVOGADO, JUIZ)", "JUIZ", "PROMOTOR"},
		{"character class digits", "national id", "123456789", "12a456789"},
		{"fixed prefix", "amount", "$1200", "1200"},
	}

	g := NewGenerator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := model.Schema{"f": tt.description}
			gabarito := model.FieldRecord{}
			gabarito.Set("f", tt.value)

			pack := g.Generate(schema, gabarito)
			predicate, ok := pack["f"]
			assert.True(t, ok)

			assert.True(t, confidence.Evaluate(predicate, tt.value), "predicate must accept the observed value")
			assert.False(t, confidence.Evaluate(predicate, tt.badValue), "predicate must reject a plausible malformed value")
		})
	}
}

func TestGenerateSkipsFieldsWithNoGabaritoValue(t *testing.T) {
	schema := model.Schema{"f": "some field"}
	gabarito := model.FieldRecord{}
	gabarito.SetNull("f")

	g := NewGenerator()
	pack := g.Generate(schema, gabarito)

	_, ok := pack["f"]
	assert.False(t, ok)
}

func TestGenerateFallsBackToLengthRange(t *testing.T) {
	schema := model.Schema{"f": "free text with punctuation"}
	gabarito := model.FieldRecord{}
	gabarito.Set("f", "Mixed, value! 123")

	g := NewGenerator()
	pack := g.Generate(schema, gabarito)

	predicate := pack["f"]
	assert.Equal(t, model.PredicateLengthRange, predicate.Kind)
	assert.True(t, confidence.Evaluate(predicate, "Mixed, value! 123"))
}
