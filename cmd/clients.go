package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/model"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage tenants and their monthly quota",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients with quota usage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		clients, err := st.ListClients(ctx)
		if err != nil {
			return eris.Wrap(err, "clients list")
		}
		if jsonOutput {
			return printJSON(clients)
		}
		tw := newTable("ID", "Name", "Email", "Plan", "Status", "Used", "Quota", "Reset")
		for _, c := range clients {
			tw.AppendRow([]any{c.ID, c.Name, c.Email, c.Plan, c.Status, c.APIUsageCurrent, c.APIQuotaMonthly, fmtTime(c.UsageResetAt)})
		}
		tw.Render()
		return nil
	},
}

var clientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		company, _ := cmd.Flags().GetString("company")
		plan, _ := cmd.Flags().GetString("plan")
		quota, _ := cmd.Flags().GetInt("quota")

		c := &model.Client{
			Name:            name,
			Email:           email,
			Company:         company,
			Plan:            model.Plan(plan),
			APIQuotaMonthly: quota,
		}
		if err := st.CreateClient(ctx, c); err != nil {
			return eris.Wrap(err, "clients create")
		}
		if jsonOutput {
			return printJSON(c)
		}
		printf("created client %s (%s plan, %d leads/month)\n", c.ID, c.Plan, c.APIQuotaMonthly)
		return nil
	},
}

var clientsResetCmd = &cobra.Command{
	Use:   "reset-usage [client-id]",
	Short: "Zero monthly usage for one client, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return eris.New("clients reset-usage: pass a client id or --all")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ids := args
		if all {
			clients, err := st.ListClients(ctx)
			if err != nil {
				return eris.Wrap(err, "clients reset-usage")
			}
			ids = ids[:0]
			for _, c := range clients {
				ids = append(ids, c.ID)
			}
		}

		now := time.Now().UTC()
		for _, id := range ids {
			if err := st.ResetUsage(ctx, id, now); err != nil {
				return eris.Wrapf(err, "clients reset-usage %s", id)
			}
		}
		printf("reset usage for %d client(s)\n", len(ids))
		return nil
	},
}

func init() {
	clientsCreateCmd.Flags().String("name", "", "client name")
	clientsCreateCmd.Flags().String("email", "", "contact email")
	clientsCreateCmd.Flags().String("company", "", "company name")
	clientsCreateCmd.Flags().String("plan", "starter", "plan: starter, professional, enterprise")
	clientsCreateCmd.Flags().Int("quota", 0, "monthly lead quota (default from plan)")
	_ = clientsCreateCmd.MarkFlagRequired("name")
	_ = clientsCreateCmd.MarkFlagRequired("email")

	clientsResetCmd.Flags().Bool("all", false, "reset every client")

	clientsCmd.AddCommand(clientsListCmd, clientsCreateCmd, clientsResetCmd)
	rootCmd.AddCommand(clientsCmd)
}
