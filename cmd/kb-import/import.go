package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/config"
	"github.com/upb/helpdesk-orchestrator/internal/observability"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories/postgres"
	"github.com/upb/helpdesk-orchestrator/services/knowledge"
)

const importLongDesc = `Replace the knowledge base stored in PostgreSQL with the entries of a
JSON or YAML file. The swap runs in one transaction, so readers see either the
old or the new set.

Database settings come from DATABASE_URL or DB_* (and .env).

Examples:
  kb-import import config/knowledge-base.json
  kb-import import kb.yaml --database-url postgres://helpdesk@localhost/helpdesk`

// openFactory opens the repository factory; tests swap it for sqlmock
type openFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.RepositoryFactory, error)

type importCommander struct {
	databaseURL string
	logLevel    string
	open        openFactory
}

func newImportCmd(open openFactory) *cobra.Command {
	if open == nil {
		open = defaultOpenFactory
	}
	cmder := &importCommander{open: open}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a knowledge base file into PostgreSQL",
		Long:  importLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().StringVar(&cmder.databaseURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "warn", "Log level")

	return cmd
}

func (c *importCommander) run(ctx context.Context, out io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := observability.NewLogger(c.logLevel, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	entries, err := knowledge.LoadFile(path)
	if err != nil {
		return err
	}

	cfg := &config.Config{}
	if c.databaseURL != "" {
		cfg.Database = config.DatabaseConfig{ConnectionString: c.databaseURL}
	} else {
		loaded, err := config.New(ctx)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if !cfg.Database.Configured() {
		return fmt.Errorf("no database configured: set DATABASE_URL, DB_HOST or --database-url")
	}

	factory, err := c.open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer factory.Close()

	if err := factory.GetDB().InitSchema(ctx); err != nil {
		return err
	}

	repos := factory.NewRepositories()
	n, err := knowledge.Import(ctx, factory.GetTransactionManager(), repos.Knowledge, entries)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(out, "imported %d entries from %s\n", n, path)
	printCategories(out, entries)
	return nil
}

func defaultOpenFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.RepositoryFactory, error) {
	return postgres.NewRepositoryFactory(cfg, logger)
}

// printCategories writes an entry count per category, sorted by name
func printCategories(out io.Writer, entries []models.KnowledgeEntry) {
	counts := make(map[string]int)
	for _, e := range entries {
		category := e.Category
		if category == "" {
			category = "(none)"
		}
		counts[category]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "  %-20s %d\n", name, counts[name])
	}
}
