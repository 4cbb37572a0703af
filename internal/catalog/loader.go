// Package catalog loads, validates and serves assessment definitions. Every definition is
// checked eagerly at load time; a definition with structural problems is never offered.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/definitionstore"
	"github.com/clinical-assessment-engine/internal/domain"
)

//go:embed definitions/*.yaml
var builtinFS embed.FS

// Source supplies raw definition documents.
type Source interface {
	Name() string
	Documents(ctx context.Context) ([]Document, error)
}

// BuiltinSource serves the definitions embedded in the binary.
type BuiltinSource struct{}

// Name identifies the source in logs.
func (BuiltinSource) Name() string { return "builtin" }

// Documents returns the embedded documents in file name order.
func (BuiltinSource) Documents(ctx context.Context) ([]Document, error) {
	return documentsFromFS(builtinFS, "definitions/*.yaml", "builtin:")
}

// GlobSource reads definition files matching doublestar patterns such as
// "/etc/assessments/**/*.yaml".
type GlobSource struct {
	Patterns []string
}

// Name identifies the source in logs.
func (g GlobSource) Name() string { return "files" }

// Documents returns the documents of every matching file, in path order.
func (g GlobSource) Documents(ctx context.Context) ([]Document, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range g.Patterns {
		base, rest := doublestar.SplitPattern(pattern)
		matches, err := doublestar.Glob(os.DirFS(base), rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid definition pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			full := path.Join(base, m)
			if !seen[full] {
				seen[full] = true
				files = append(files, full)
			}
		}
	}
	sort.Strings(files)

	var docs []Document
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		parsed, err := ParseDocuments(file, content)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

// StoreSource serves the definitions saved in a definition store.
type StoreSource struct {
	Store definitionstore.Store
	// PageSize bounds each List call; zero means defaultStorePageSize.
	PageSize int
}

const defaultStorePageSize = 500

// Name identifies the source in logs.
func (s StoreSource) Name() string { return "store" }

// Documents returns every stored document.
func (s StoreSource) Documents(ctx context.Context) ([]Document, error) {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = defaultStorePageSize
	}

	var docs []Document
	for offset := 0; ; offset += pageSize {
		records, err := s.Store.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored definitions: %w", err)
		}
		for _, rec := range records {
			parsed, err := ParseDocuments("store:"+rec.AssessmentID, rec.Document)
			if err != nil {
				return nil, err
			}
			docs = append(docs, parsed...)
		}
		if len(records) < pageSize {
			return docs, nil
		}
	}
}

func documentsFromFS(fsys fs.FS, pattern, prefix string) ([]Document, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var docs []Document
	for _, m := range matches {
		content, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", m, err)
		}
		parsed, err := ParseDocuments(prefix+path.Base(m), content)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

// LoadReport lists what the loader accepted and rejected.
type LoadReport struct {
	Loaded   []string
	Replaced []string
	Rejected []*domain.StructuralDefinitionError
}

// Err joins the rejections into one error, or returns nil.
func (r *LoadReport) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, e := range r.Rejected {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Loader builds a Registry from its sources. Later sources override earlier ones by id.
type Loader struct {
	schema  *SchemaValidator
	sources []Source
	strict  bool
	logger  *logrus.Logger
}

// NewLoader creates a loader reading the given sources in order.
func NewLoader(logger *logrus.Logger, strict bool, sources ...Source) (*Loader, error) {
	schema, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{schema: schema, sources: sources, strict: strict, logger: logger}, nil
}

// Sources builds the source list for a catalog configuration.
func Sources(cfg domain.CatalogConfig, store definitionstore.Store) []Source {
	var sources []Source
	if !cfg.DisableBuiltins {
		sources = append(sources, BuiltinSource{})
	}
	if len(cfg.Definitions) > 0 {
		sources = append(sources, GlobSource{Patterns: cfg.Definitions})
	}
	if store != nil {
		sources = append(sources, StoreSource{Store: store})
	}
	return sources
}

// Load reads, checks and validates every document. Invalid definitions are reported and
// skipped; in strict mode any invalid definition fails the load.
func (l *Loader) Load(ctx context.Context) (*Registry, *LoadReport, error) {
	report := &LoadReport{}
	accepted := make(map[string]*domain.AssessmentDefinition)
	var order []string

	for _, src := range l.sources {
		docs, err := src.Documents(ctx)
		if err != nil {
			return nil, report, fmt.Errorf("failed to read %s definitions: %w", src.Name(), err)
		}
		for _, doc := range docs {
			def, err := l.Check(doc)
			if err != nil {
				var structural *domain.StructuralDefinitionError
				if !errors.As(err, &structural) {
					return nil, report, err
				}
				report.Rejected = append(report.Rejected, structural)
				l.logger.WithFields(logrus.Fields{
					"source":     doc.Origin,
					"definition": structural.Definition,
					"problems":   len(structural.Problems),
				}).Error("Rejected invalid assessment definition")
				continue
			}
			if _, exists := accepted[def.ID]; exists {
				report.Replaced = append(report.Replaced, def.ID)
				l.logger.WithFields(logrus.Fields{
					"source":        doc.Origin,
					"assessment_id": def.ID,
				}).Warn("Assessment definition overrides an earlier one")
			} else {
				order = append(order, def.ID)
			}
			accepted[def.ID] = def
		}
	}

	if l.strict {
		if err := report.Err(); err != nil {
			return nil, report, fmt.Errorf("strict catalog: %w", err)
		}
	}

	defs := make([]*domain.AssessmentDefinition, 0, len(order))
	for _, id := range order {
		defs = append(defs, accepted[id])
	}
	registry, err := NewRegistry(defs...)
	if err != nil {
		return nil, report, err
	}
	report.Loaded = order

	l.logger.WithFields(logrus.Fields{
		"loaded":   len(order),
		"rejected": len(report.Rejected),
	}).Info("Assessment catalog loaded")
	return registry, report, nil
}

// Check runs one document through the schema, the decoder and the structural validator.
// Structural and schema problems are returned as *domain.StructuralDefinitionError.
func (l *Loader) Check(doc Document) (*domain.AssessmentDefinition, error) {
	name := doc.ID()
	if name == "" {
		name = doc.Origin
	}

	problems, err := l.schema.Check(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", doc.Origin, err)
	}
	if len(problems) > 0 {
		return nil, &domain.StructuralDefinitionError{Definition: name, Problems: problems}
	}

	def, err := Decode(doc)
	if err != nil {
		return nil, &domain.StructuralDefinitionError{Definition: name, Problems: []string{err.Error()}}
	}
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}
