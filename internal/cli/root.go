// Package cli implements the catalogctl operator commands using Cobra.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinical-assessment-engine/internal/catalog"
	"github.com/clinical-assessment-engine/internal/config"
	"github.com/clinical-assessment-engine/internal/definitionstore"
	"github.com/clinical-assessment-engine/internal/domain"
)

// Build-time variables, injected via ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// options are the persistent flags shared by every command.
type options struct {
	configFile  string
	definitions []string
	storeDSN    string
	noBuiltins  bool
	logLevel    string
	noColor     bool
}

// app carries the parsed flags and the output streams of one invocation.
type app struct {
	opts        options
	databaseURL string
	out         io.Writer
	errOut      io.Writer
	logger      *logrus.Logger
	styles      styles
}

// NewRootCommand builds the catalogctl command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Manage and exercise clinical assessment definitions",
		Long: `catalogctl validates assessment definition files, lists the catalog, scores
response sets from the command line and manages the definition store.

The definition store is picked from the DSN: postgres:// URLs use PostgreSQL,
anything else is a SQLite file path.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configFile, "config", "", "config file supplying catalog and database defaults")
	flags.StringSliceVarP(&a.opts.definitions, "definitions", "d", nil, "extra definition globs, e.g. 'defs/**/*.yaml'")
	flags.StringVar(&a.opts.storeDSN, "store", "", "definition store DSN (SQLite path or postgres:// URL)")
	flags.BoolVar(&a.opts.noBuiltins, "no-builtins", false, "do not load the built-in assessments")
	flags.StringVar(&a.opts.logLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	flags.BoolVar(&a.opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.newValidateCommand(),
		a.newListCommand(),
		a.newEvaluateCommand(),
		a.newImportCommand(),
		a.newExportCommand(),
		a.newMigrateCommand(),
		a.newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) setup() error {
	logger, err := config.NewLogger(domain.LoggingConfig{Level: a.opts.logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}
	logger.SetOutput(a.errOut)
	a.logger = logger
	a.styles = newStyles(!a.opts.noColor)

	if a.opts.configFile == "" {
		return nil
	}
	manager, err := config.NewManager(a.opts.configFile)
	if err != nil {
		return err
	}
	cfg := manager.GetConfig()
	if cfg.Database.Host != "" {
		a.databaseURL = manager.GetDatabaseConnectionString()
	}
	if len(a.opts.definitions) == 0 {
		a.opts.definitions = cfg.Catalog.Definitions
	}
	if !a.opts.noBuiltins {
		a.opts.noBuiltins = cfg.Catalog.DisableBuiltins
	}
	if a.opts.storeDSN == "" {
		switch cfg.Catalog.Store {
		case "sqlite":
			a.opts.storeDSN = cfg.Catalog.SQLitePath
		case "postgres":
			a.opts.storeDSN = a.databaseURL
		}
	}
	return nil
}

// openStore opens the configured definition store, or returns nil when none is set.
func (a *app) openStore() (definitionstore.Store, error) {
	if a.opts.storeDSN == "" {
		return nil, nil
	}
	store, err := definitionstore.Open(a.opts.storeDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open definition store: %w", err)
	}
	return store, nil
}

// requireStore opens the definition store and fails when no DSN is configured.
func (a *app) requireStore() (definitionstore.Store, error) {
	if a.opts.storeDSN == "" {
		return nil, fmt.Errorf("no definition store: pass --store or a config file with catalog.store")
	}
	return a.openStore()
}

// loadCatalog builds the registry from the builtins, the definition globs and the store.
func (a *app) loadCatalog(ctx context.Context) (*catalog.Registry, *catalog.LoadReport, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		defer store.Close()
	}

	cfg := domain.CatalogConfig{Definitions: a.opts.definitions, DisableBuiltins: a.opts.noBuiltins}
	loader, err := catalog.NewLoader(a.logger, false, catalog.Sources(cfg, store)...)
	if err != nil {
		return nil, nil, err
	}
	return loader.Load(ctx)
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "catalogctl %s\n", Version)
			fmt.Fprintf(a.out, "  commit:  %s\n", Commit)
		},
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
