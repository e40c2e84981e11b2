package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/pipeline"
)

// criteriaFlags binds lead criteria to command flags.
type criteriaFlags struct {
	keywords     string
	industries   []string
	locations    []string
	titles       []string
	companySizes []string
	minScore     int
	maxResults   int
	noVerify     bool
	noEnrich     bool

	cmd *cobra.Command
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	f.cmd = cmd
	cmd.Flags().StringVar(&f.keywords, "keywords", "", "search keywords")
	cmd.Flags().StringSliceVar(&f.industries, "industry", nil, "target industries (repeatable)")
	cmd.Flags().StringSliceVar(&f.locations, "location", nil, "target locations (repeatable)")
	cmd.Flags().StringSliceVar(&f.titles, "title", nil, "target job titles (repeatable)")
	cmd.Flags().StringSliceVar(&f.companySizes, "company-size", nil, "company size buckets, e.g. 11-50")
	cmd.Flags().IntVar(&f.minScore, "min-score", 0, "minimum lead score (default 60)")
	cmd.Flags().IntVar(&f.maxResults, "max", 0, "maximum leads to save (default 100)")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "skip email verification")
	cmd.Flags().BoolVar(&f.noEnrich, "no-enrich", false, "skip profile validation")
}

func (f *criteriaFlags) criteria() model.LeadCriteria {
	c := model.LeadCriteria{
		Keywords:       f.keywords,
		Industries:     f.industries,
		Locations:      f.locations,
		Titles:         f.titles,
		CompanySizes:   f.companySizes,
		MaxResults:     f.maxResults,
		VerifyEmails:   model.Bool(!f.noVerify),
		EnrichProfiles: model.Bool(!f.noEnrich),
	}
	// --min-score 0 is a real threshold, so only an unset flag takes the default.
	if f.cmd != nil && f.cmd.Flags().Changed("min-score") {
		c.MinScore = model.Int(f.minScore)
	}
	return c
}

var generateFlags criteriaFlags

var generateCmd = &cobra.Command{
	Use:   "generate <client-id>",
	Short: "Run the lead pipeline for a client and save the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Generate(ctx, pipeline.GenerateRequest{
			ClientID: args[0],
			Criteria: generateFlags.criteria(),
		})
		if jsonOutput {
			if perr := printJSON(res); perr != nil {
				return perr
			}
			return err
		}
		if err != nil {
			return err
		}

		tw := newTable("Score", "Name", "Title", "Company", "Email", "Verified")
		for _, l := range res.Leads {
			tw.AppendRow([]any{l.Score, l.Name, truncate(l.Title, 30), truncate(l.Company, 30), l.Email, l.EmailVerified})
		}
		tw.Render()
		s := res.Summary
		printf("raw %d -> filtered %d -> enriched %d -> qualified %d -> saved %d (avg score %.1f, %d remaining this month)\n",
			s.RawResults, s.AfterFiltering, s.AfterEnrichment, s.Qualified, s.Final, res.AverageScore, res.APIUsageRemaining)
		printf("provider calls: apollo=%d hunter=%d linkedin=%d\n", res.Calls.Apollo, res.Calls.Hunter, res.Calls.LinkedIn)
		return nil
	},
}

var suggestFlags criteriaFlags

var suggestCmd = &cobra.Command{
	Use:   "suggest <client-id>",
	Short: "Preview leads for criteria without saving or charging quota",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sug, err := env.Pipeline.Suggest(ctx, args[0], suggestFlags.criteria())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sug)
		}

		tw := newTable("Score", "Name", "Title", "Company", "Location", "Domain")
		for _, p := range sug.Previews {
			tw.AppendRow([]any{p.Score, p.Name, p.Title, p.Company, p.Location, p.EmailDomain})
		}
		tw.Render()
		printf("estimated matches: %d\n", sug.EstimatedTotal)
		return nil
	},
}

func init() {
	generateFlags.register(generateCmd)
	suggestFlags.register(suggestCmd)
	rootCmd.AddCommand(generateCmd, suggestCmd)
}
