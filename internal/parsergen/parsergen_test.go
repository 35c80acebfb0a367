package parsergen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/extractionengine/internal/model"
)

func TestGenerateEmitsSelfValidatingPatterns(t *testing.T) {
	schema := model.Schema{"name": "full name", "id": "national id"}
	text := "Full Name: Jane Doe\nNational ID: 123.456.789-00\n"

	gabarito := model.FieldRecord{}
	gabarito.Set("name", "Jane Doe")
	gabarito.Set("id", "123.456.789-00")

	g := NewGenerator()
	pack := g.Generate(schema, text, gabarito)

	assert.Len(t, pack, 2)
	for _, entry := range pack {
		compiled, err := regexp.Compile(entry.Pattern)
		assert.NoError(t, err, "every emitted pattern must compile")

		m := compiled.FindStringSubmatch(text)
		assert.GreaterOrEqual(t, len(m), 2, "pattern for %s must contain a capturing group", entry.Field)

		var want string
		if entry.Field == "name" {
			want = "Jane Doe"
		} else {
			want = "123.456.789-00"
		}
		assert.Equal(t, want, m[1])
	}
}

func TestGenerateOmitsFieldsWithNoGabaritoValue(t *testing.T) {
	schema := model.Schema{"name": "full name", "missing": "never in gabarito"}
	gabarito := model.FieldRecord{}
	gabarito.Set("name", "Jane Doe")
	gabarito.SetNull("missing")

	g := NewGenerator()
	pack := g.Generate(schema, "Name: Jane Doe", gabarito)

	assert.True(t, pack.Fields()["name"])
	assert.False(t, pack.Fields()["missing"])
}

func TestGenerateOmitsFieldWhoseValueIsNotFoundInText(t *testing.T) {
	schema := model.Schema{"name": "full name"}
	gabarito := model.FieldRecord{}
	gabarito.Set("name", "Somebody Else Entirely")

	g := NewGenerator()
	pack := g.Generate(schema, "This text does not contain that value.", gabarito)

	assert.Empty(t, pack)
}
