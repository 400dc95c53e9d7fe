package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collabtext/collabtext/internal/database"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.Backend != "postgres" {
				return fmt.Errorf("migrations apply to STORE_BACKEND=postgres, not %q", cfg.Store.Backend)
			}
			ctx := cmd.Context()
			db, err := database.OpenPostgres(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), "migrations applied", map[string]string{"status": "ok"})
		},
	})
	return cmd
}
