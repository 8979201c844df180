package condition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeCleanScript(t *testing.T) {
	e := New(0)

	report := e.Analyze(`return context.region == "eu"`)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.Suggestions)
}

func TestAnalyzeEmptyScript(t *testing.T) {
	e := New(0)

	report := e.Analyze("")
	assert.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "empty")
}

func TestAnalyzeSyntaxErrorIsWarningOnly(t *testing.T) {
	e := New(0)

	report := e.Analyze(`if context.x then`)
	assert.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "syntax error")
}

func TestAnalyzeOversizeScript(t *testing.T) {
	e := New(0)

	big := "return true -- " + strings.Repeat("x", MaxScriptBytes)
	report := e.Analyze(big)
	assert.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "bytes")
}

func TestAnalyzeMissingDecision(t *testing.T) {
	e := New(0)

	report := e.Analyze(`local x = context.region`)
	assert.Len(t, report.Suggestions, 1)
	assert.Contains(t, report.Suggestions[0], "always evaluate to false")

	// Setting allow clears the suggestion
	report = e.Analyze(`allow = context.region == "eu"`)
	assert.Empty(t, report.Suggestions)

	// So does a trailing return with a value
	report = e.Analyze(`return context.region == "eu"`)
	assert.Empty(t, report.Suggestions)
}

func TestAnalyzeSandboxedGlobals(t *testing.T) {
	e := New(0)

	report := e.Analyze(`return os.time() > context.deadline`)
	assert.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], `"os"`)

	report = e.Analyze(`local f = io.open("x") return true`)
	assert.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], `"io"`)
}
