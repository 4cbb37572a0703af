package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinical-assessment-engine/internal/catalog"
	"github.com/clinical-assessment-engine/internal/definitionstore"
)

func (a *app) newImportCommand() *cobra.Command {
	var bundle string
	cmd := &cobra.Command{
		Use:   "import [globs...]",
		Short: "Validate definition files and save them to the definition store",
		Long: `Import checks each definition and saves the valid ones to the store,
replacing stored definitions with the same id. With --bundle it loads a file
written by "catalogctl export" instead, skipping ids already stored.

  catalogctl import --store assessments.db 'defs/**/*.yaml'
  catalogctl import --store postgres://engine@db/assessments --bundle backup.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bundle == "" && len(args) == 0 {
				return fmt.Errorf("import: provide definition globs or --bundle <file>")
			}
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if bundle != "" {
				return a.importBundle(cmd, store, bundle)
			}
			return a.importFiles(cmd, store, args)
		},
	}
	cmd.Flags().StringVar(&bundle, "bundle", "", "JSON export bundle to import")
	return cmd
}

func (a *app) importFiles(cmd *cobra.Command, store definitionstore.Store, patterns []string) error {
	ctx := cmd.Context()
	docs, err := catalog.GlobSource{Patterns: patterns}.Documents(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("import: no definitions match %v", patterns)
	}
	loader, err := catalog.NewLoader(a.logger, false)
	if err != nil {
		return err
	}

	saved, rejected := 0, 0
	for _, doc := range docs {
		def, err := loader.Check(doc)
		if err != nil {
			rejected++
			fmt.Fprintf(a.out, "%s %s: %v\n", a.styles.fail.Render("✗"), doc.Origin, err)
			continue
		}
		encoded, err := catalog.Encode(def)
		if err != nil {
			return err
		}
		record, err := definitionstore.NewRecord(encoded)
		if err != nil {
			return err
		}
		if err := store.Save(ctx, record); err != nil {
			return err
		}
		saved++
		fmt.Fprintf(a.out, "%s %s %s\n", a.styles.ok.Render("✓"), def.ID, a.styles.muted.Render(def.Version))
	}

	fmt.Fprintln(a.out, a.styles.heading.Render(fmt.Sprintf("%s saved, %s rejected",
		plural(saved, "definition"), plural(rejected, "definition"))))
	if rejected > 0 {
		return fmt.Errorf("%s failed validation", plural(rejected, "definition"))
	}
	return nil
}

func (a *app) importBundle(cmd *cobra.Command, store definitionstore.Store, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	var export definitionstore.DefinitionExport
	if err := json.Unmarshal(content, &export); err != nil {
		return fmt.Errorf("failed to parse bundle: %w", err)
	}
	loader, err := catalog.NewLoader(a.logger, false)
	if err != nil {
		return err
	}
	for _, record := range export.Definitions {
		docs, err := catalog.ParseDocuments("bundle:"+record.AssessmentID, record.Document)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if _, err := loader.Check(doc); err != nil {
				return fmt.Errorf("bundle rejected: %w", err)
			}
		}
	}

	imported, skipped, err := store.ImportJSON(cmd.Context(), bytes.NewReader(content))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s imported, %d skipped\n", plural(imported, "definition"), skipped)
	return nil
}

func (a *app) newExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored definition to a JSON bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = a.out
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}
			return store.ExportJSON(cmd.Context(), w)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the bundle to a file instead of stdout")
	return cmd
}
