package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect provider gates",
}

var providersUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show configured provider quotas and pacing",
	RunE: func(_ *cobra.Command, _ []string) error {
		set, err := provider.NewSet(cfg)
		if err != nil {
			return err
		}
		usage := set.Usage()
		if jsonOutput {
			return printJSON(usage)
		}
		tw := newTable("Provider", "Period", "Used", "Limit", "Remaining", "Resets", "Circuit")
		for _, u := range usage {
			resets := u.ResetsAt
			tw.AppendRow([]any{u.Provider, u.Period, u.Used, u.Limit, u.Remaining, fmtTime(&resets), u.Circuit})
		}
		tw.Render()
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersUsageCmd)
	rootCmd.AddCommand(providersCmd)
}
