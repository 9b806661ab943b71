// Package prompts holds the instruction templates sent to the vision model.
//
// Every template has four parts, in order: a directive to read the attached
// image, the OCR text embedded verbatim, the task-specific correction steps,
// and the output-format contract. Templates are Spanish to match the
// documents the pipeline is deployed against.
package prompts

import (
	"strings"

	"github.com/gmsas95/docrefine/internal/task"
)

const ocrHeader = "TEXTO OCR (puede contener errores):"

type template struct {
	directive string
	steps     []string
	contract  []string
}

var (
	cleanTemplate = template{
		directive: "Analiza la imagen adjunta y compárala con el texto que un motor OCR extrajo de ella.",
		steps: []string{
			"Lee con atención todo el texto visible en la imagen.",
			"Compara lo que ves con el texto OCR de arriba.",
			"Corrige los errores del OCR y completa lo que falte usando la imagen como referencia.",
		},
		contract: []string{
			"Devuelve únicamente el texto corregido, sin comentarios.",
			"Usa saltos de línea reales; nunca escribas la secuencia \\n.",
		},
	}

	structureTemplate = template{
		directive: "Analiza la imagen adjunta y el texto que un motor OCR extrajo de ella.",
		steps: []string{
			"Lee todo el contenido visual de la imagen.",
			"Compara con el texto OCR y corrige sus errores.",
			"Organiza la información corregida en JSON, identificando las secciones del documento.",
		},
		contract: []string{
			"Responde SOLO con JSON válido: sin comillas triples, sin bloques de código, sin texto adicional.",
			`Correcto: [{"campo": "valor"}]`,
			"Incorrecto: ```json [{\"campo\": \"valor\"}] ```",
		},
	}

	extractTemplate = template{
		directive: "Analiza la imagen adjunta y compárala con el texto que un motor OCR extrajo de ella.",
		steps: []string{
			"Observa la imagen para captar toda la información visual.",
			"Compara con el texto OCR y corrige los errores de reconocimiento.",
			"Extrae los datos clave corregidos: nombres, fechas, números, direcciones y similares.",
		},
		contract: []string{
			"Devuelve SOLO JSON válido: sin comillas triples, sin bloques de código, sin explicaciones.",
			`Correcto: [{"nombre": "Juan"}]`,
			"Incorrecto: ```json [{\"nombre\": \"Juan\"}] ```",
		},
	}

	summarizeTemplate = template{
		directive: "Analiza la imagen adjunta y el texto que un motor OCR extrajo de ella.",
		steps: []string{
			"Lee todo el contenido visual para entender el contexto.",
			"Corrige el texto OCR según lo que realmente aparece en la imagen.",
			"Reproduce en markdown el contenido del documento manteniendo su estructura visual.",
		},
		contract: []string{
			"Usa markdown: encabezados (#, ##, ###), listas y negritas (**texto**).",
			"Conserva la estructura visual del documento original.",
			"Usa saltos de línea reales; nunca escribas la secuencia \\n.",
			"No añadas explicaciones ni resúmenes propios; muestra solo el contenido.",
			"Si hay tablas, reprodúcelas como tablas markdown.",
			"Si hay formularios, muestra cada campo con su valor.",
		},
	}
)

// Build returns the full instruction for t with ocrText embedded verbatim.
func Build(t task.Task, ocrText string) string {
	return render(templateFor(t), ocrText)
}

// BuildNamed resolves name with task.Parse, so unknown names get the clean
// template.
func BuildNamed(name, ocrText string) string {
	t, _ := task.Parse(name)
	return Build(t, ocrText)
}

func templateFor(t task.Task) template {
	switch t {
	case task.Clean:
		return cleanTemplate
	case task.Structure:
		return structureTemplate
	case task.Extract:
		return extractTemplate
	case task.Summarize:
		return summarizeTemplate
	default:
		return cleanTemplate
	}
}

func render(tpl template, ocrText string) string {
	var sb strings.Builder

	sb.WriteString(tpl.directive)
	sb.WriteString("\n\n")
	sb.WriteString(ocrHeader)
	sb.WriteString("\n")
	sb.WriteString(ocrText)
	sb.WriteString("\n\n")

	sb.WriteString("PASOS:\n")
	for i, step := range tpl.steps {
		sb.WriteString(ordinal(i))
		sb.WriteString(": ")
		sb.WriteString(step)
		sb.WriteString("\n")
	}

	sb.WriteString("\nFORMATO DE SALIDA:\n")
	for _, line := range tpl.contract {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

func ordinal(i int) string {
	names := []string{"Primero", "Segundo", "Tercero", "Cuarto", "Quinto"}
	if i < len(names) {
		return names[i]
	}
	return "Después"
}
