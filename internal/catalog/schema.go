package catalog

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema/*.cue
var schemaFS embed.FS

const definitionSchemaPath = "#Definition"

// SchemaValidator checks raw definition documents against the embedded CUE schema before
// they are decoded.
type SchemaValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewSchemaValidator compiles the embedded schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}

	ctx := cuecontext.New()
	var schema cue.Value
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".cue" {
			continue
		}
		content, err := schemaFS.ReadFile(path.Join("schema", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		inst := ctx.CompileBytes(content, cue.Filename(entry.Name()))
		if err := inst.Err(); err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", entry.Name(), err)
		}
		if def := inst.LookupPath(cue.ParsePath(definitionSchemaPath)); def.Exists() {
			schema = def
		}
	}
	if !schema.Exists() {
		return nil, fmt.Errorf("schema %s not found in embedded schemas", definitionSchemaPath)
	}

	return &SchemaValidator{ctx: ctx, schema: schema}, nil
}

// Check returns one problem per schema violation, or nil when the document conforms.
func (v *SchemaValidator) Check(doc map[string]any) ([]string, error) {
	data := v.ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("error encoding document: %w", err)
	}

	unified := v.schema.Unify(data)
	if err := unified.Err(); err != nil {
		return flattenCUEErrors(err), nil
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return flattenCUEErrors(err), nil
	}
	return nil, nil
}

func flattenCUEErrors(err error) []string {
	var problems []string
	for _, e := range cueerrors.Errors(err) {
		problems = append(problems, "schema: "+strings.TrimSpace(e.Error()))
	}
	if len(problems) == 0 {
		problems = append(problems, "schema: "+err.Error())
	}
	return problems
}
