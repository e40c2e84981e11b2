package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/provider"
)

// Enricher annotates candidates with email verification and profile
// validation. It never removes a candidate.
type Enricher struct {
	verifier    provider.EmailVerifier
	profiles    provider.ProfileValidator
	concurrency int
}

// NewEnricher creates an Enricher. concurrency <= 0 means 4.
func NewEnricher(verifier provider.EmailVerifier, profiles provider.ProfileValidator, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Enricher{verifier: verifier, profiles: profiles, concurrency: concurrency}
}

// Enrich runs the lookups the criteria ask for on every candidate in place.
// A failed lookup leaves that candidate unannotated.
func (e *Enricher) Enrich(ctx context.Context, cands []model.CandidateLead, criteria model.LeadCriteria) {
	verify := criteria.ShouldVerifyEmails() && e.verifier != nil
	profiles := criteria.ShouldEnrichProfiles() && e.profiles != nil
	if !verify && !profiles {
		return
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i := range cands {
		c := &cands[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if verify && c.Email != "" {
				v, err := e.verifier.VerifyEmail(ctx, c.Email)
				if err != nil {
					zap.L().Debug("pipeline: email verification failed",
						zap.String("email", c.Email),
						zap.Error(err),
					)
				} else {
					c.Verification = v
					c.Deliverable = provider.IsDeliverable(v)
				}
			}
			if profiles && c.ProfileURL != "" {
				pv, err := e.profiles.ValidateProfileURL(ctx, c.ProfileURL)
				if err != nil {
					zap.L().Debug("pipeline: profile validation failed",
						zap.String("url", c.ProfileURL),
						zap.Error(err),
					)
				} else {
					c.Profile = pv
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}
