package parserexec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/extractionengine/internal/model"
)

func TestExecuteAppliesEachPatternIndependently(t *testing.T) {
	pack := model.ParserPack{
		{Field: "name", Pattern: `Name:\s*(\w+ \w+)`},
		{Field: "id", Pattern: `ID:\s*(\d+)`},
	}
	text := "Name: Jane Doe\nID: 4821"

	e := NewExecutor()
	record := e.Execute(pack, text)

	v, ok := record.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", v)

	v, ok = record.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "4821", v)
}

func TestExecuteYieldsNullOnNoMatch(t *testing.T) {
	pack := model.ParserPack{{Field: "missing", Pattern: `NeverPresent:(\d+)`}}

	e := NewExecutor()
	record := e.Execute(pack, "nothing relevant here")

	_, ok := record.Get("missing")
	assert.False(t, ok)
}

func TestExecuteDegradesGracefullyOnUncompilablePattern(t *testing.T) {
	pack := model.ParserPack{{Field: "broken", Pattern: `(unterminated[`}}

	e := NewExecutor()
	assert.NotPanics(t, func() {
		record := e.Execute(pack, "anything")
		_, ok := record.Get("broken")
		assert.False(t, ok)
	})
}
