package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assessment-engine/internal/definitionstore"
)

const sampleDefinition = `
id: sample
name: Sample scale
version: "1"
category: testing
items:
  - id: q1
    prompt: Question one
    kind: single-choice
    options:
      - {value: a, label: A, weight: 0}
      - {value: b, label: B, weight: 1}
  - {id: q2, prompt: Question two, kind: boolean}
tables:
  level:
    domain: "[0, 2]"
    step: 1
    bands:
      - {range: "[0, 0]", label: Low}
      - {range: "[1, 2]", label: High}
stages:
  - id: main
    rules:
      - score: total
        strategy: sum-of-weights
        items: [q1, q2]
    interpretation: {score: total, table: level}
`

const brokenDefinition = `
id: broken
name: Broken scale
version: "1"
items:
  - {id: q1, prompt: Question one, kind: essay}
stages:
  - id: main
    rules:
      - {score: total, strategy: sum-of-weights, items: [q1]}
    interpretation: {score: total}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), append([]string{"--no-color"}, args...), &out, &errOut)
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListCommand(t *testing.T) {
	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "braden")
	assert.Contains(t, out, "mna")
	assert.Contains(t, out, "(staged)")

	out, err = run(t, "list", "--category", "cognition")
	require.NoError(t, err)
	assert.Contains(t, out, "mini-cog")
	assert.Contains(t, out, "pfeiffer")
	assert.NotContains(t, out, "braden")
}

func TestListIncludesDefinitionGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.yaml", sampleDefinition)

	out, err := run(t, "list", "--no-builtins", "--definitions", filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "sample")
	assert.NotContains(t, out, "braden")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.yaml", sampleDefinition)

	out, err := run(t, "validate", filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sample")
	assert.Contains(t, out, "1 definition valid, 0 definitions invalid")

	writeFile(t, dir, "broken.yaml", brokenDefinition)
	out, err = run(t, "validate", filepath.Join(dir, "*.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, err.Error(), "1 definition failed validation")
}

func TestValidateBuiltins(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "8 definitions valid")
}

func TestEvaluateCommand(t *testing.T) {
	dir := t.TempDir()
	answers := writeFile(t, dir, "answers.json", `{"words_recalled": 3, "clock_drawing": "normal"}`)

	out, err := run(t, "evaluate", "mini-cog", "--responses", answers)
	require.NoError(t, err)
	assert.Contains(t, out, "Classification: Negative screen")

	out, err = run(t, "evaluate", "mini-cog", "--responses", answers, "--format", "csv", "--subject", "Bed 4")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\r\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"mini-cog","Mini-Cog","1.0","Bed 4",`))

	wrapped := writeFile(t, dir, "wrapped.json", `{"responses": {"words_recalled": 1, "clock_drawing": "abnormal"}}`)
	out, err = run(t, "evaluate", "mini-cog", "--responses", wrapped, "--format", "json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.Contains(t, out, "Positive screen for cognitive impairment")
}

func TestEvaluateCommandErrors(t *testing.T) {
	dir := t.TempDir()
	partial := writeFile(t, dir, "partial.json", `{"words_recalled": 3}`)

	_, err := run(t, "evaluate", "mini-cog", "--responses", partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INCOMPLETE_RESPONSE")
	assert.Contains(t, err.Error(), "clock_drawing")

	_, err = run(t, "evaluate", "apgar", "--responses", partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")

	_, err = run(t, "evaluate", "mini-cog", "--responses", partial, "--format", "pdf")
	require.Error(t, err)

	_, err = run(t, "evaluate", "mini-cog")
	require.Error(t, err)
}

func TestImportExportCommands(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "definitions.db")
	writeFile(t, dir, "sample.yaml", sampleDefinition)

	out, err := run(t, "import", "--store", storePath, filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 definition saved, 0 definitions rejected")

	out, err = run(t, "list", "--store", storePath, "--category", "testing")
	require.NoError(t, err)
	assert.Contains(t, out, "Sample scale")

	answers := writeFile(t, dir, "answers.json", `{"q1": "a", "q2": false}`)
	out, err = run(t, "evaluate", "sample", "--store", storePath, "--responses", answers)
	require.NoError(t, err)
	assert.Contains(t, out, "Low")

	bundle := filepath.Join(dir, "bundle.json")
	_, err = run(t, "export", "--store", storePath, "--output", bundle)
	require.NoError(t, err)
	content, err := os.ReadFile(bundle)
	require.NoError(t, err)
	var export definitionstore.DefinitionExport
	require.NoError(t, json.Unmarshal(content, &export))
	require.Len(t, export.Definitions, 1)
	assert.Equal(t, "sample", export.Definitions[0].AssessmentID)

	fresh := filepath.Join(dir, "fresh.db")
	out, err = run(t, "import", "--store", fresh, "--bundle", bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "1 definition imported, 0 skipped")

	out, err = run(t, "import", "--store", fresh, "--bundle", bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "0 definitions imported, 1 skipped")
}

func TestImportRejectsInvalidDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", brokenDefinition)

	out, err := run(t, "import", "--store", filepath.Join(dir, "definitions.db"), filepath.Join(dir, "*.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "✗")

	_, err = run(t, "import", filepath.Join(dir, "*.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no definition store")
}

func TestMigrateRequiresDatabase(t *testing.T) {
	_, err := run(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--database-url")

	_, err = run(t, "migrate", "sideways", "--database-url", "postgres://localhost/none")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown direction")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "catalogctl dev")
}
