package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocuments(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		docs, isArray, err := ParseDocuments([]byte(`{"route_id":"R1","route_type":3}`))
		require.NoError(t, err)
		assert.False(t, isArray)
		require.Len(t, docs, 1)
		assert.Equal(t, json.Number("3"), docs[0]["route_type"])
	})

	t.Run("array", func(t *testing.T) {
		docs, isArray, err := ParseDocuments([]byte(` [{"id":1},{"id":2}]`))
		require.NoError(t, err)
		assert.True(t, isArray)
		require.Len(t, docs, 2)
		id, ok := docs[1].ID()
		assert.True(t, ok)
		assert.Equal(t, int64(2), id)
	})

	t.Run("null", func(t *testing.T) {
		_, _, err := ParseDocuments([]byte(`null`))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := ParseDocuments([]byte(`{"route_id":`))
		assert.Error(t, err)
	})
}

func TestDocumentChildren(t *testing.T) {
	docs, _, err := ParseDocuments([]byte(`{"pattern_stops":[{"stop_id":"S1"}],"shapes":"nope"}`))
	require.NoError(t, err)
	doc := docs[0]

	children, present, err := doc.Children("pattern_stops")
	require.NoError(t, err)
	require.True(t, present)
	require.Len(t, children, 1)

	children[0]["pattern_id"] = "P1"
	raw := doc["pattern_stops"].([]any)[0].(map[string]any)
	assert.Equal(t, "P1", raw["pattern_id"], "children share storage with the document")

	_, present, err = doc.Children("shapes")
	require.NoError(t, err)
	assert.False(t, present)

	_, present, _ = doc.Children("frequencies")
	assert.False(t, present)

	_, _, err = Document{"stop_times": []any{"x"}}.Children("stop_times")
	assert.Error(t, err)
}

func TestInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int", 4, 4, true},
		{"json integer", json.Number("12"), 12, true},
		{"json whole float", json.Number("12.0"), 12, true},
		{"json fraction", json.Number("12.5"), 0, false},
		{"float fraction", 1.5, 0, false},
		{"numeric string", "42", 42, true},
		{"text", "abc", 0, false},
		{"bool", true, 1, true},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Int64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "R1", Text("R1"))
	assert.Equal(t, "7", Text(json.Number("7")))
	assert.Equal(t, "1.5", Text(1.5))
	assert.Equal(t, "9", Text(int64(9)))

	v, ok := Document{"a": nil}.Text("a")
	assert.False(t, ok)
	assert.Empty(t, v)
}
