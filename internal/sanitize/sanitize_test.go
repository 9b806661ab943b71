package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gmsas95/docrefine/internal/task"
)

func TestSanitize_EmptyPassesThrough(t *testing.T) {
	for _, tk := range task.All {
		assert.Equal(t, "", Sanitize("", tk))
	}
}

func TestSanitize_FencedJSON(t *testing.T) {
	input := "```json\n[{\"a\":1}]\n```"
	for _, tk := range []task.Task{task.Structure, task.Extract} {
		assert.Equal(t, `[{"a":1}]`, Sanitize(input, tk), tk.String())
	}
}

func TestSanitize_FencesRemovedAnywhere(t *testing.T) {
	input := "Texto corregido ```json con ``` marcas"
	assert.Equal(t, "Texto corregido  con  marcas", Sanitize(input, task.Clean))
}

func TestSanitize_ExtractDropsTrailingProse(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, Sanitize(`[{"a":1}] thanks`, task.Extract))
}

func TestSanitize_StructureKeepsTrailingProse(t *testing.T) {
	assert.Equal(t, `[{"a":1}] thanks`, Sanitize(`[{"a":1}] thanks`, task.Structure))
}

func TestSanitize_ExtractObjectNotTruncated(t *testing.T) {
	assert.Equal(t, `{"a":1} gracias`, Sanitize(`{"a":1} gracias`, task.Extract))
}

func TestSanitize_SkipsPreamble(t *testing.T) {
	tests := []struct {
		name  string
		input string
		tk    task.Task
		want  string
	}{
		{"array after prose", "Aquí está el JSON: [1, 2]", task.Structure, "[1, 2]"},
		{"object after prose", "Resultado: {\"nombre\": \"Juan\"}", task.Extract, `{"nombre": "Juan"}`},
		{"array preferred over object", "x {\"k\": [1]}", task.Structure, "[1]}"},
		{"no bracket", "sin datos", task.Extract, "sin datos"},
		{"extract preamble and trailer", "Datos:\n[{\"a\":1}]\nSaludos", task.Extract, `[{"a":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input, tt.tk))
		})
	}
}

func TestSanitize_SummarizeHeading(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"### Resumen:\n# Title\ntext", "# Title\ntext"},
		{"Resumen:\n- punto uno\n- **dos**", "- punto uno\n- **dos**"},
		{"## Resumen: contenido", "contenido"},
		{"# Factura\nResumen: no al inicio", "# Factura\nResumen: no al inicio"},
		{"| a | b |\n|---|---|\n| 1 | 2 |\n", "| a | b |\n|---|---|\n| 1 | 2 |"},
		{"  Resumen: foo", "foo"},
		{"\n### Resumen:\n# Title\ntext", "# Title\ntext"},
		{"```\n### Resumen:\n# Title\n```", "# Title"},
		{"Resumen: Resumen: x", "x"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.input, task.Summarize))
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"  texto limpio \n",
		"### Resumen:\n# Title\ntext",
		"# Encabezado\n\n**negrita** y lista:\n- a\n- b",
		"  Resumen: foo",
		"\n### Resumen:\n# Title\ntext",
		"```\n### Resumen:\n# Title\n```",
		"Resumen: Resumen: x",
	}

	for _, tk := range []task.Task{task.Clean, task.Summarize} {
		for _, in := range inputs {
			once := Sanitize(in, tk)
			assert.Equal(t, once, Sanitize(once, tk), "%s: %q", tk, in)
		}
	}
}

func TestSanitize_AlwaysTrimmed(t *testing.T) {
	for _, tk := range task.All {
		assert.Equal(t, "hola", Sanitize("\n\t hola \n", tk), tk.String())
	}
}
