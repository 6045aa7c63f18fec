package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/shutdown"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
	"github.com/yayoedit-hub/dump2-57cbd353/services/billing"
)

func newReconcileCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Diff local subscriptions against Stripe once and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			srv, closeFn, err := billing.Bootstrap(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := srv.Reconcile(logging.WithContext(ctx, log))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort the run after this long")
	return cmd
}

func newCronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run reconciliation on RECONCILE_SCHEDULE until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := telemetry.InitSentry(cfg.SentryDSN, "billing-cron", cfg.Release, cfg.Env, log); err != nil {
				log.WithError(err).Warn("sentry init failed")
			}
			defer telemetry.Flush()

			srv, closeFn, err := billing.Bootstrap(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			c, err := srv.StartScheduler(cfg.ReconcileSchedule)
			if err != nil {
				return err
			}
			shutdown.WaitForSignal(log)
			<-c.Stop().Done()
			return nil
		},
	}
}
