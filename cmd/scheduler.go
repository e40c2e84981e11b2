package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/campaign"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run due campaigns",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll for due campaigns until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sched := campaign.NewScheduler(env.Campaigns, cfg.Scheduler)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		sched.Stop()
		zap.L().Info("scheduler exited", zap.Int64("ticks", sched.Status().Ticks))
		return nil
	},
}

var schedulerTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run every due campaign once and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := campaign.NewScheduler(env.Campaigns, cfg.Scheduler).RunDue(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		printf("due %d, executed %d (%d completed, %d failed), skipped %d, reaped %d\n",
			res.Due, res.Executed, res.Completed, res.Failed, res.Skipped, res.Reaped)
		return nil
	},
}

var schedulerReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Cancel executions stuck in running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		hours, _ := cmd.Flags().GetInt("older-than-hours")
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			n, err := svc.ReapStale(cmd.Context(), time.Duration(hours)*time.Hour)
			if err != nil {
				return err
			}
			printf("reaped %d execution(s)\n", n)
			return nil
		})
	},
}

func init() {
	schedulerReapCmd.Flags().Int("older-than-hours", 2, "age after which a running execution is stale")
	schedulerCmd.AddCommand(schedulerRunCmd, schedulerTickCmd, schedulerReapCmd)
	rootCmd.AddCommand(schedulerCmd)
}
