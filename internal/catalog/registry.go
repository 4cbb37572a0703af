package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Registry is the read-only set of validated definitions, keyed by id. It is built once by
// the Loader and safe for concurrent use.
type Registry struct {
	defs      map[string]*domain.AssessmentDefinition
	summaries []domain.Summary
}

// NewRegistry validates and seals the given definitions. Any invalid definition fails the
// whole registry; use the Loader to skip invalid documents instead.
func NewRegistry(defs ...*domain.AssessmentDefinition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*domain.AssessmentDefinition, len(defs))}
	for _, def := range defs {
		if err := Validate(def); err != nil {
			return nil, err
		}
		if _, dup := r.defs[def.ID]; dup {
			return nil, fmt.Errorf("duplicate assessment id %q", def.ID)
		}
		def.Seal()
		r.defs[def.ID] = def
	}
	r.index()
	return r, nil
}

func (r *Registry) index() {
	r.summaries = make([]domain.Summary, 0, len(r.defs))
	for _, def := range r.defs {
		r.summaries = append(r.summaries, def.Summarize())
	}
	sort.Slice(r.summaries, func(i, j int) bool {
		a, b := r.summaries[i], r.summaries[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (*domain.AssessmentDefinition, error) {
	def, ok := r.defs[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("assessment %q: %w", id, domain.ErrNotFound)
	}
	return def, nil
}

// List returns summaries sorted by category then id.
func (r *Registry) List() []domain.Summary {
	out := make([]domain.Summary, len(r.summaries))
	copy(out, r.summaries)
	return out
}

// ListCategory returns the summaries of one category.
func (r *Registry) ListCategory(category string) []domain.Summary {
	var out []domain.Summary
	for _, s := range r.summaries {
		if strings.EqualFold(s.Category, category) {
			out = append(out, s)
		}
	}
	return out
}

// Categories returns the distinct categories in sorted order.
func (r *Registry) Categories() []string {
	var cats []string
	for _, s := range r.summaries {
		if s.Category == "" {
			continue
		}
		if len(cats) == 0 || cats[len(cats)-1] != s.Category {
			cats = append(cats, s.Category)
		}
	}
	return cats
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}
