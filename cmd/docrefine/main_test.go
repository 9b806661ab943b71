package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/docrefine/internal/store"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"process", "batch", "probe", "history", "watch", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersion(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "docrefine version dev\n", out.String())
}

func TestProcessRequiresFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"process"})

	assert.Error(t, root.Execute())
}

func TestPrintRuns(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, nil)
	assert.Equal(t, "No runs yet.\n", out.String())

	out.Reset()
	printRuns(&out, []store.Run{{
		SourcePath: "/scans/factura.pdf",
		OutputPath: "resultado_factura.json",
		Tasks:      "clean,extract",
		Confidence: 0.87,
		SoftErrors: 1,
		DurationMs: 1500,
		CacheHit:   true,
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}})

	rendered := out.String()
	for _, want := range []string{"DOCUMENT", "factura.pdf", "clean,extract", "0.87", "1.5s (cached)"} {
		assert.True(t, strings.Contains(rendered, want), "missing %q in\n%s", want, rendered)
	}
}
