package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/hunter"
)

// HunterAdapter verifies emails and searches domains through Hunter.
type HunterAdapter struct {
	client  hunter.Client
	gate    *Gate
	nowFunc func() time.Time
}

// NewHunterAdapter creates the adapter. An empty API key is a configuration
// error.
func NewHunterAdapter(apiKey string, gate *Gate, opts ...hunter.Option) (*HunterAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, eris.Wrap(apperr.ErrConfiguration, "hunter: api key is required")
	}
	return &HunterAdapter{client: hunter.NewClient(apiKey, opts...), gate: gate, nowFunc: time.Now}, nil
}

// Gate exposes the adapter's shared gate.
func (h *HunterAdapter) Gate() *Gate { return h.gate }

// VerifyEmail checks deliverability of one address.
func (h *HunterAdapter) VerifyEmail(ctx context.Context, email string) (*model.VerificationResult, error) {
	email = model.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, eris.Wrapf(apperr.ErrValidation, "hunter: malformed email %q", email)
	}

	var v *hunter.Verification
	err := h.gate.Do(ctx, "verify_email", func(ctx context.Context) error {
		var err error
		v, err = h.client.VerifyEmail(ctx, email)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &model.VerificationResult{
		Email:      email,
		Result:     outcomeOf(v.Result),
		Score:      v.Score,
		Status:     v.Status,
		Webmail:    v.Webmail,
		Disposable: v.Disposable,
		AcceptAll:  v.AcceptAll,
		VerifiedAt: h.nowFunc().UTC(),
	}, nil
}

// FindEmails lists personal addresses Hunter knows for a domain as
// candidates.
func (h *HunterAdapter) FindEmails(ctx context.Context, domain string, limit int, department string) ([]model.CandidateLead, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, eris.Wrap(apperr.ErrValidation, "hunter: domain is required")
	}

	var res *hunter.DomainSearchResult
	err := h.gate.Do(ctx, "domain_search", func(ctx context.Context) error {
		var err error
		res, err = h.client.DomainSearch(ctx, hunter.DomainSearchRequest{Domain: domain, Limit: limit, Department: department})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.CandidateLead, 0, len(res.Emails))
	for _, e := range res.Emails {
		name := strings.TrimSpace(e.FirstName + " " + e.LastName)
		email := model.NormalizeEmail(e.Value)
		if name == "" && email == "" {
			continue
		}
		out = append(out, model.CandidateLead{
			Name:          normalizeName(name),
			Email:         email,
			Phone:         e.Phone,
			Company:       res.Organization,
			CompanyDomain: domain,
			Title:         e.Position,
			ProfileURL:    e.LinkedIn,
			Source:        NameHunter,
		})
	}
	return out, nil
}

// IsDeliverable reports whether a verification result is good enough to
// email.
func IsDeliverable(v *model.VerificationResult) bool {
	return v.Deliverable()
}

func outcomeOf(result string) model.VerificationOutcome {
	switch r := model.VerificationOutcome(strings.ToLower(result)); r {
	case model.VerificationDeliverable, model.VerificationRisky, model.VerificationUndeliverable:
		return r
	default:
		return model.VerificationUnknown
	}
}
