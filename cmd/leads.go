package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/crm"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and export saved leads",
}

func leadFilterFromFlags(cmd *cobra.Command, clientID string) (store.LeadFilter, error) {
	f := store.LeadFilter{ClientID: clientID}
	f.CampaignID, _ = cmd.Flags().GetString("campaign")
	f.MinScore, _ = cmd.Flags().GetInt("min-score")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	if raw, _ := cmd.Flags().GetString("status"); raw != "" {
		st, err := model.ParseLeadStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	return f, nil
}

var leadsListCmd = &cobra.Command{
	Use:   "list <client-id>",
	Short: "List a client's leads, best first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := leadFilterFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, f)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if jsonOutput {
			return printJSON(leads)
		}
		tw := newTable("ID", "Score", "Status", "Name", "Company", "Email", "Created")
		for _, l := range leads {
			created := l.CreatedAt
			tw.AppendRow([]any{l.ID, l.Score, l.Status, l.Name, truncate(l.Company, 30), l.Email, fmtTime(&created)})
		}
		tw.Render()
		return nil
	},
}

var leadsStatusCmd = &cobra.Command{
	Use:   "status <client-id> <lead-id> <status>",
	Short: "Move a lead to a new status",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		to, err := model.ParseLeadStatus(args[2])
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		note, _ := cmd.Flags().GetString("note")
		lead.TransitionStatus(to, note, nowUTC())
		if err := st.UpdateLead(ctx, lead); err != nil {
			return eris.Wrap(err, "leads status")
		}
		printf("lead %s is now %s\n", lead.ID, lead.Status)
		return nil
	},
}

var leadsPushCmd = &cobra.Command{
	Use:   "push-crm <client-id>",
	Short: "Export leads to Salesforce, updating leads already there",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := leadFilterFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sf, err := crm.Connect(cfg.Salesforce)
		if err != nil {
			return err
		}
		leads, err := st.ListLeads(ctx, f)
		if err != nil {
			return eris.Wrap(err, "leads push-crm")
		}
		res, err := crm.NewExporter(sf, st).Push(ctx, leads)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		printf("salesforce: %d created, %d updated, %d failed\n", res.Created, res.Updated, res.Failed)
		for _, msg := range res.Errors {
			printf("  %s\n", msg)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsPushCmd} {
		c.Flags().String("campaign", "", "only leads from this campaign")
		c.Flags().String("status", "", "only leads with this status")
		c.Flags().Int("min-score", 0, "only leads scoring at least this")
		c.Flags().Int("limit", 100, "maximum leads")
	}
	leadsStatusCmd.Flags().String("note", "", "note recorded with the change")

	leadsCmd.AddCommand(leadsListCmd, leadsStatusCmd, leadsPushCmd)
	rootCmd.AddCommand(leadsCmd)
}
