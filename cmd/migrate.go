package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibimina/ingest-core/internal/store"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the session schema for the configured driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initSessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		m, ok := st.(migrator)
		if !ok {
			return eris.Errorf("driver %s has no schema to migrate", cfg.Session.Driver)
		}
		if err := m.Migrate(cmd.Context()); err != nil {
			return eris.Wrap(err, "migrate session schema")
		}
		zap.L().Info("session schema migrated", zap.String("driver", cfg.Session.Driver))

		if cfg.Storage.DatabaseURL != "" {
			txStore, err := store.NewPostgres(cmd.Context(), store.Options{
				ConnString: cfg.Storage.DatabaseURL,
				Table:      cfg.Storage.TransactionsTable,
			})
			if err != nil {
				return err
			}
			defer txStore.Close()
			if err := txStore.Migrate(cmd.Context()); err != nil {
				return eris.Wrap(err, "migrate transactions schema")
			}
			zap.L().Info("transactions schema migrated", zap.String("table", cfg.Storage.TransactionsTable))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
