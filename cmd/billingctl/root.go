package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/config"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Billing service operations",
		Long:          "billingctl runs migrations, reconciliation and other maintenance against the billing database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newReconcileCmd())
	root.AddCommand(newCronCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// loadConfig seeds the environment from --env-file and validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Entry, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewLogger("billingctl"), nil
}
