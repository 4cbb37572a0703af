package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Document is one raw definition document together with where it came from.
type Document struct {
	Origin string
	Data   map[string]any
}

// ID returns the document's declared id, or "" when absent.
func (d Document) ID() string {
	id, _ := d.Data["id"].(string)
	return id
}

// ParseDocuments splits a YAML (or JSON) stream into definition documents.
func ParseDocuments(origin string, content []byte) ([]Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	var docs []Document
	for i := 0; ; i++ {
		var data map[string]any
		err := dec.Decode(&data)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s document %d: %w", origin, i, err)
		}
		if len(data) == 0 {
			continue
		}
		docs = append(docs, Document{Origin: origin, Data: data})
	}
	return docs, nil
}

// Decode converts a schema-checked document into a definition. Tables without axes may
// list their bands directly; a single stage without items collects every item.
func Decode(doc Document) (*domain.AssessmentDefinition, error) {
	normalized := normalizeTables(doc.Data)

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", doc.Origin, err)
	}

	var def domain.AssessmentDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", doc.Origin, err)
	}

	if len(def.Stages) == 1 && len(def.Stages[0].Items) == 0 {
		ids := make([]string, len(def.Items))
		for i, item := range def.Items {
			ids[i] = item.ID
		}
		def.Stages[0].Items = ids
	}
	for i := range def.Stages {
		if def.Stages[i].Name == "" {
			def.Stages[i].Name = def.Stages[i].ID
		}
	}
	return &def, nil
}

// Encode renders a definition back to its JSON document form.
func Encode(def *domain.AssessmentDefinition) ([]byte, error) {
	return json.Marshal(def)
}

func normalizeTables(data map[string]any) map[string]any {
	tables, ok := data["tables"].(map[string]any)
	if !ok {
		return data
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	normalized := make(map[string]any, len(tables))
	for id, raw := range tables {
		table, ok := raw.(map[string]any)
		if !ok {
			normalized[id] = raw
			continue
		}
		t := make(map[string]any, len(table)+1)
		for k, v := range table {
			t[k] = v
		}
		if _, ok := t["id"]; !ok {
			t["id"] = id
		}
		if bands, ok := t["bands"]; ok {
			if _, has := t["partitions"]; !has {
				t["partitions"] = []any{map[string]any{"bands": bands}}
			}
			delete(t, "bands")
		}
		normalized[id] = t
	}
	out["tables"] = normalized
	return out
}
