package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/events"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

var campaignsCmd = &cobra.Command{
	Use:     "campaigns",
	Aliases: []string{"campaign"},
	Short:   "Manage recurring lead-generation campaigns",
}

// withCampaigns runs fn against a campaign service that cannot generate
// leads. Commands that run campaigns use initEnv instead.
func withCampaigns(ctx context.Context, fn func(svc *campaign.Service) error) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	pub, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			zap.L().Warn("close event publisher", zap.Error(err))
		}
	}()

	return fn(campaign.NewService(st, nil, pub))
}

func printCampaign(c *model.Campaign) error {
	if jsonOutput {
		return printJSON(c)
	}
	printf("%s  %s  [%s]\n", c.ID, c.Name, c.Status)
	printf("  schedule: %s every %d %s at %s %s\n", c.Frequency.Kind, c.Frequency.Value, c.Frequency.Unit, c.PreferredTime, c.Timezone)
	printf("  leads: %d generated, %d on file, %d per run, %d total limit\n", c.TotalLeadsGenerated, c.LeadsOnFile, c.MaxLeadsPerRun, c.MaxLeadsTotal)
	printf("  last run: %s  next run: %s\n", fmtTime(c.LastRunAt), fmtTime(c.NextRunAt))
	return nil
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		clientID, _ := cmd.Flags().GetString("client")
		status, _ := cmd.Flags().GetString("status")
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			list, err := svc.List(cmd.Context(), store.CampaignFilter{ClientID: clientID, Status: model.CampaignStatus(status)})
			if err != nil {
				return eris.Wrap(err, "campaigns list")
			}
			if jsonOutput {
				return printJSON(list)
			}
			tw := newTable("ID", "Client", "Name", "Status", "Frequency", "Generated", "Next run")
			for _, c := range list {
				tw.AppendRow([]any{c.ID, c.ClientID, truncate(c.Name, 40), c.Status, c.Frequency.Kind, c.TotalLeadsGenerated, fmtTime(c.NextRunAt)})
			}
			tw.Render()
			return nil
		})
	},
}

var campaignsShowCmd = &cobra.Command{
	Use:   "show <campaign-id>",
	Short: "Show a campaign with its execution stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			stats, err := svc.Stats(cmd.Context(), "", args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(stats)
			}
			if err := printCampaign(stats.Campaign); err != nil {
				return err
			}
			printf("  executions: %d (%d ok, %d failed, %.1f%% success, %.1f leads/run)\n",
				stats.TotalExecutions, stats.SuccessfulExecutions, stats.FailedExecutions, stats.SuccessRate, stats.AvgLeadsPerRun)

			tw := newTable("Execution", "Status", "Started", "Leads", "Seconds", "Error")
			for _, e := range stats.RecentExecutions {
				started := e.StartedAt
				tw.AppendRow([]any{e.ID, e.Status, fmtTime(&started), e.LeadsGenerated, e.DurationSeconds, truncate(e.ErrorMessage, 50)})
			}
			tw.Render()
			return nil
		})
	},
}

var createFlags criteriaFlags

var campaignsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign from flags",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		clientID, _ := f.GetString("client")
		name, _ := f.GetString("name")
		freq, _ := f.GetString("frequency")
		value, _ := f.GetInt("every")
		unit, _ := f.GetString("unit")
		at, _ := f.GetString("at")
		tz, _ := f.GetString("timezone")
		perRun, _ := f.GetInt("per-run")
		total, _ := f.GetInt("total")

		c := &model.Campaign{
			ClientID:       clientID,
			Name:           name,
			Criteria:       createFlags.criteria(),
			Frequency:      model.Frequency{Kind: model.FrequencyKind(freq), Value: value, Unit: model.FrequencyUnit(unit)},
			PreferredTime:  at,
			Timezone:       tz,
			MaxLeadsPerRun: perRun,
			MaxLeadsTotal:  total,
		}
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			if err := svc.Create(cmd.Context(), c); err != nil {
				return err
			}
			return printCampaign(c)
		})
	},
}

var campaignsOnboardCmd = &cobra.Command{
	Use:   "onboard <client-id> <questionnaire.json>",
	Short: "Create a campaign from an onboarding questionnaire",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return eris.Wrap(err, "read questionnaire")
		}
		var o campaign.Onboarding
		if err := json.Unmarshal(data, &o); err != nil {
			return eris.Wrap(err, "parse questionnaire")
		}
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			c, err := svc.CreateFromOnboarding(cmd.Context(), args[0], o)
			if err != nil {
				return err
			}
			return printCampaign(c)
		})
	},
}

// statusCommand builds a campaign lifecycle command.
func statusCommand(use, short string, fn func(svc *campaign.Service, ctx context.Context, clientID, id string) (*model.Campaign, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
				c, err := fn(svc, cmd.Context(), "", args[0])
				if err != nil {
					return err
				}
				return printCampaign(c)
			})
		},
	}
}

var campaignsRunCmd = &cobra.Command{
	Use:   "run <campaign-id>",
	Short: "Run a campaign now, outside its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		exec, err := env.Campaigns.RunNow(ctx, "", args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(exec)
		}
		printf("execution %s %s: %d leads in %ds", exec.ID, exec.Status, exec.LeadsGenerated, exec.DurationSeconds)
		if exec.ErrorMessage != "" {
			printf(" (%s)", exec.ErrorMessage)
		}
		printf("\n")
		return nil
	},
}

func printExecutions(execs []model.CampaignExecution) error {
	if jsonOutput {
		return printJSON(execs)
	}
	tw := newTable("Execution", "Campaign", "Status", "Started", "Leads", "Seconds", "Error")
	for _, e := range execs {
		started := e.StartedAt
		name := e.CampaignName
		if name == "" {
			name = e.CampaignID
		}
		tw.AppendRow([]any{e.ID, truncate(name, 30), e.Status, fmtTime(&started), e.LeadsGenerated, e.DurationSeconds, truncate(e.ErrorMessage, 50)})
	}
	tw.Render()
	return nil
}

var campaignsExecutionsCmd = &cobra.Command{
	Use:   "executions <campaign-id>",
	Short: "List a campaign's executions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			execs, err := svc.Executions(cmd.Context(), "", args[0], limit, offset)
			if err != nil {
				return err
			}
			return printExecutions(execs)
		})
	},
}

var campaignsStatsCmd = &cobra.Command{
	Use:   "stats <client-id>",
	Short: "Summarize a client's executions by day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		recent, _ := cmd.Flags().GetBool("recent")
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			if recent {
				execs, err := svc.RecentExecutions(cmd.Context(), args[0], 10)
				if err != nil {
					return err
				}
				return printExecutions(execs)
			}

			st, err := svc.ExecutionStats(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(st)
			}
			printf("last %d days: %d executions (%d ok, %d failed, %.1f%% success), %d leads, %.1f leads/run\n",
				st.Days, st.TotalExecutions, st.SuccessfulExecutions, st.FailedExecutions, st.SuccessRate, st.TotalLeadsGenerated, st.AvgLeadsPerRun)
			tw := newTable("Date", "Executions", "Successful", "Failed", "Leads")
			for _, d := range st.ByDay {
				tw.AppendRow([]any{d.Date, d.Executions, d.Successful, d.Failed, d.LeadsGenerated})
			}
			tw.Render()
			return nil
		})
	},
}

var campaignsDeleteCmd = &cobra.Command{
	Use:   "delete <campaign-id>",
	Short: "Delete a campaign with its executions and leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCampaigns(cmd.Context(), func(svc *campaign.Service) error {
			if err := svc.Delete(cmd.Context(), "", args[0]); err != nil {
				return err
			}
			printf("deleted campaign %s\n", args[0])
			return nil
		})
	},
}

func init() {
	campaignsListCmd.Flags().String("client", "", "only this client's campaigns")
	campaignsListCmd.Flags().String("status", "", "only campaigns with this status")

	cf := campaignsCreateCmd.Flags()
	cf.String("client", "", "owning client id")
	cf.String("name", "", "campaign name")
	cf.String("frequency", "daily", "daily, weekly, monthly or custom")
	cf.Int("every", 1, "custom frequency count")
	cf.String("unit", "day", "custom frequency unit: hour, day or week")
	cf.String("at", "09:00", "preferred local run time (HH:MM)")
	cf.String("timezone", model.DefaultTimezone, "IANA timezone for --at")
	cf.Int("per-run", campaign.DefaultLeadsPerRun, "maximum leads per run")
	cf.Int("total", 0, "lifetime lead ceiling (0 = none)")
	createFlags.register(campaignsCreateCmd)
	_ = campaignsCreateCmd.MarkFlagRequired("client")
	_ = campaignsCreateCmd.MarkFlagRequired("name")

	campaignsExecutionsCmd.Flags().Int("limit", 20, "maximum executions to list")
	campaignsExecutionsCmd.Flags().Int("offset", 0, "executions to skip")
	campaignsStatsCmd.Flags().Int("days", 30, "window in days")
	campaignsStatsCmd.Flags().Bool("recent", false, "list the 10 most recent executions instead")

	campaignsCmd.AddCommand(
		campaignsListCmd,
		campaignsShowCmd,
		campaignsCreateCmd,
		campaignsOnboardCmd,
		statusCommand("pause", "Stop scheduling a campaign", (*campaign.Service).Pause),
		statusCommand("resume", "Resume a paused campaign", (*campaign.Service).Resume),
		statusCommand("cancel", "Cancel a campaign and its running executions", (*campaign.Service).Cancel),
		campaignsRunCmd,
		campaignsExecutionsCmd,
		campaignsStatsCmd,
		campaignsDeleteCmd,
	)
	rootCmd.AddCommand(campaignsCmd)
}
