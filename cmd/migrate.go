package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/restrobook/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			return migrate.Up(ctx, e.db, e.logger.Named("migrate"))
		},
	}
}
