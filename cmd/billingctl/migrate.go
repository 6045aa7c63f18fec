package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, mg *store.Migrator) error {
			if err := mg.Up(); err != nil {
				return err
			}
			return printVersion(cmd, mg)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withMigrator(func(cmd *cobra.Command, mg *store.Migrator) error {
			if err := mg.Down(); err != nil {
				return err
			}
			return printVersion(cmd, mg)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE:  withMigrator(printVersion),
	})
	return cmd
}

func withMigrator(fn func(*cobra.Command, *store.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		mg, err := st.NewMigrator()
		if err != nil {
			return err
		}
		return fn(cmd, mg)
	}
}

func printVersion(cmd *cobra.Command, mg *store.Migrator) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, state)
	return nil
}
