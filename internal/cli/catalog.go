package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinical-assessment-engine/internal/catalog"
	"github.com/clinical-assessment-engine/internal/domain"
)

func (a *app) newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [globs...]",
		Short: "Check definition files against the schema and the structural rules",
		Long: `Validate parses every definition matching the given globs and reports each
problem found. Without arguments it validates the whole configured catalog.

  catalogctl validate 'defs/**/*.yaml'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				report *catalog.LoadReport
				err    error
			)
			if len(args) > 0 {
				var loader *catalog.Loader
				loader, err = catalog.NewLoader(a.logger, false, catalog.GlobSource{Patterns: args})
				if err != nil {
					return err
				}
				_, report, err = loader.Load(cmd.Context())
			} else {
				_, report, err = a.loadCatalog(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.printLoadReport(report)
		},
	}
}

func (a *app) printLoadReport(report *catalog.LoadReport) error {
	for _, id := range report.Loaded {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.ok.Render("✓"), id)
	}
	for _, rejected := range report.Rejected {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.fail.Render("✗"), rejected.Definition)
		for _, problem := range rejected.Problems {
			fmt.Fprintf(a.out, "    %s\n", a.styles.muted.Render(problem))
		}
	}
	for _, id := range report.Replaced {
		fmt.Fprintf(a.out, "%s %s overrides an earlier definition\n", a.styles.warn.Render("!"), id)
	}

	summary := fmt.Sprintf("%s valid, %s invalid",
		plural(len(report.Loaded), "definition"), plural(len(report.Rejected), "definition"))
	fmt.Fprintln(a.out, a.styles.heading.Render(summary))

	if len(report.Rejected) > 0 {
		return fmt.Errorf("%s failed validation", plural(len(report.Rejected), "definition"))
	}
	return nil
}

func (a *app) newListCommand() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the assessments in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			summaries := registry.List()
			if category != "" {
				summaries = registry.ListCategory(category)
			}
			a.printSummaries(summaries)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list assessments in this category")
	return cmd
}

func (a *app) printSummaries(summaries []domain.Summary) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{"ID", "NAME", "VERSION", "CATEGORY", "ITEMS", "STAGES"}, "\t"))
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Name, s.Version, s.Category, s.Items, stagesColumn(s))
	}
	w.Flush()
}

func stagesColumn(s domain.Summary) string {
	if s.Staged {
		return strconv.Itoa(s.Stages) + " (staged)"
	}
	return strconv.Itoa(s.Stages)
}
