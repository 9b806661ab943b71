package ocr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(confs ...float64) []any {
	out := make([]any, len(confs))
	for i, c := range confs {
		out[i] = map[string]any{"value": "w", "confidence": c}
	}
	return out
}

func tree(lines ...[]any) map[string]any {
	ls := make([]any, len(lines))
	for i, w := range lines {
		ls[i] = map[string]any{"words": w}
	}
	return map[string]any{
		"pages": []any{
			map[string]any{"blocks": []any{map[string]any{"lines": ls}}},
		},
	}
}

func TestConfidence_Mean(t *testing.T) {
	data := tree(words(0.9, 0.7), words(0.5))
	assert.InDelta(t, 0.7, Confidence(data), 1e-9)
}

func TestConfidence_AcrossPages(t *testing.T) {
	data := map[string]any{
		"pages": []any{
			map[string]any{"blocks": []any{map[string]any{"lines": []any{map[string]any{"words": words(1.0)}}}}},
			map[string]any{"blocks": []any{map[string]any{"lines": []any{map[string]any{"words": words(0.0, 0.5)}}}}},
		},
	}
	assert.InDelta(t, 0.5, Confidence(data), 1e-9)
}

func TestConfidence_ZeroWords(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(tree(words())))
	assert.Equal(t, 0.0, Confidence(map[string]any{"pages": []any{}}))
}

func TestConfidence_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil", nil},
		{"no pages", map[string]any{}},
		{"pages not a list", map[string]any{"pages": "x"}},
		{"page not a map", map[string]any{"pages": []any{1}}},
		{"missing blocks", map[string]any{"pages": []any{map[string]any{}}}},
		{"missing lines", map[string]any{"pages": []any{map[string]any{"blocks": []any{map[string]any{}}}}}},
		{"missing words", tree(nil)},
		{"word without confidence", tree([]any{map[string]any{"value": "a"}})},
		{"confidence not a number", tree([]any{map[string]any{"confidence": "0.9"}})},
		{"malformed after valid words", tree(words(0.9), []any{"bad"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, Confidence(tt.data))
		})
	}
}

func TestConfidence_DecodedJSON(t *testing.T) {
	a := &Analysis{Pages: []Page{{
		Blocks: []Block{{Lines: []Line{{Words: []Word{
			{Value: "Total", Confidence: 0.8},
			{Value: "$10", Confidence: 0.6},
		}}}}},
	}}}

	raw, err := json.Marshal(a.Export())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.InDelta(t, 0.7, Confidence(decoded), 1e-9)
	assert.InDelta(t, Confidence(a.Export()), Confidence(decoded), 1e-9)
}
