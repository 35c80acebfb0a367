package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldRecordGetSet(t *testing.T) {
	rec := NewFieldRecord(Schema{"name": "full legal name", "dob": "date of birth"})
	assert.Equal(t, 2, rec.NullCount())

	rec.Set("name", "Jane Doe")
	v, ok := rec.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", v)
	assert.Equal(t, 1, rec.NullCount())

	rec.SetNull("name")
	_, ok = rec.Get("name")
	assert.False(t, ok)
}

func TestFieldRecordCloneIsIndependent(t *testing.T) {
	rec := NewFieldRecord(Schema{"a": "field a"})
	rec.Set("a", "original")

	clone := rec.Clone()
	clone.Set("a", "mutated")

	v, _ := rec.Get("a")
	assert.Equal(t, "original", v)
}

func TestFieldRecordMergeMissing(t *testing.T) {
	tests := []struct {
		name     string
		base     FieldRecord
		other    FieldRecord
		field    string
		wantVal  string
		wantOk   bool
	}{
		{
			name:    "fills a null field",
			base:    FieldRecord{"a": nil},
			other:   mustRecord("a", "filled"),
			field:   "a",
			wantVal: "filled",
			wantOk:  true,
		},
		{
			name:    "does not overwrite a non-null field",
			base:    mustRecord("a", "existing"),
			other:   mustRecord("a", "incoming"),
			field:   "a",
			wantVal: "existing",
			wantOk:  true,
		},
		{
			name:   "leaves field null when other has no value",
			base:   FieldRecord{"a": nil},
			other:  FieldRecord{"a": nil},
			field:  "a",
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.base.MergeMissing(tt.other)
			v, ok := tt.base.Get(tt.field)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.wantVal, v)
			}
		})
	}
}

func TestExecutionPathString(t *testing.T) {
	assert.Equal(t, "path2_cached_high_confidence", PathCachedHighConfidence.String())
	assert.Equal(t, "path1_cold_heuristic_sufficient", PathColdHeuristicSufficient.String())
	assert.Equal(t, "path_unknown", ExecutionPath(99).String())
}

func mustRecord(field, value string) FieldRecord {
	r := FieldRecord{}
	r.Set(field, value)
	return r
}
