package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/apollo"
	"github.com/sells-group/leadgen/pkg/hunter"
	"github.com/sells-group/leadgen/pkg/linkedin"
)

// Searcher returns candidate leads for a search.
type Searcher interface {
	Search(ctx context.Context, params model.SearchParams) ([]model.CandidateLead, error)
}

// EmailVerifier checks deliverability of an address.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, email string) (*model.VerificationResult, error)
}

// ProfileValidator checks a professional-network profile URL.
type ProfileValidator interface {
	ValidateProfileURL(ctx context.Context, url string) (*model.ProfileValidation, error)
}

// OrgEnricher looks up company details by domain.
type OrgEnricher interface {
	EnrichOrganization(ctx context.Context, domain string) (*model.OrgInfo, error)
}

// Set holds the process-wide adapters. Build it once and share it.
type Set struct {
	Apollo   *ApolloAdapter
	Hunter   *HunterAdapter
	LinkedIn *LinkedInAdapter
}

// NewSet builds all adapters from config. Missing credentials fail with
// apperr.ErrConfiguration.
func NewSet(cfg *config.Config) (*Set, error) {
	retry := resilience.FromRetryConfig(
		cfg.Throttle.MaxAttempts,
		cfg.Throttle.InitialBackoffMs,
		cfg.Throttle.MaxBackoffMs,
		cfg.Throttle.MaxRetryAfterSecs,
		cfg.Throttle.Multiplier,
		cfg.Throttle.JitterFraction,
	)
	circuit := resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)

	gateFor := func(name string, pc config.ProviderConfig) *Gate {
		return NewGate(name, GateConfig{
			MinInterval: time.Duration(pc.MinIntervalMs) * time.Millisecond,
			Quota:       pc.Quota,
			Period:      ParsePeriod(pc.QuotaPeriod),
			Retry:       retry,
			Circuit:     circuit,
		})
	}

	ap, err := NewApolloAdapter(cfg.Apollo.APIKey, gateFor(NameApollo, cfg.Apollo),
		apollo.WithBaseURL(cfg.Apollo.BaseURL),
		apollo.WithHTTPClient(httpClient(cfg.Apollo.TimeoutSecs)),
	)
	if err != nil {
		return nil, err
	}

	hu, err := NewHunterAdapter(cfg.Hunter.APIKey, gateFor(NameHunter, cfg.Hunter),
		hunter.WithBaseURL(cfg.Hunter.BaseURL),
		hunter.WithHTTPClient(httpClient(cfg.Hunter.TimeoutSecs)),
	)
	if err != nil {
		return nil, err
	}

	li, err := NewLinkedInAdapter(cfg.LinkedIn.ClientID, cfg.LinkedIn.ClientSecret, gateFor(NameLinkedIn, cfg.LinkedIn.ProviderConfig),
		linkedin.WithBaseURL(cfg.LinkedIn.BaseURL),
		linkedin.WithAccessToken(cfg.LinkedIn.AccessToken),
		linkedin.WithHTTPClient(httpClient(cfg.LinkedIn.TimeoutSecs)),
	)
	if err != nil {
		return nil, err
	}

	return &Set{Apollo: ap, Hunter: hu, LinkedIn: li}, nil
}

// Usage returns quota snapshots for every provider.
func (s *Set) Usage() []Usage {
	return []Usage{s.Apollo.Gate().Usage(), s.Hunter.Gate().Usage(), s.LinkedIn.Gate().Usage()}
}

func httpClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 30
	}
	return &http.Client{
		Timeout: time.Duration(timeoutSecs) * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
