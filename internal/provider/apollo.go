package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/apollo"
)

// ApolloAdapter searches people and enriches organizations through Apollo.
type ApolloAdapter struct {
	client apollo.Client
	gate   *Gate
}

// NewApolloAdapter creates the adapter. An empty API key is a configuration
// error.
func NewApolloAdapter(apiKey string, gate *Gate, opts ...apollo.Option) (*ApolloAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, eris.Wrap(apperr.ErrConfiguration, "apollo: api key is required")
	}
	return &ApolloAdapter{client: apollo.NewClient(apiKey, opts...), gate: gate}, nil
}

// Gate exposes the adapter's shared gate.
func (a *ApolloAdapter) Gate() *Gate { return a.gate }

// Search runs one people search page and returns normalized candidates.
// Records with neither a name nor an email are dropped.
func (a *ApolloAdapter) Search(ctx context.Context, params model.SearchParams) ([]model.CandidateLead, error) {
	req := apollo.SearchRequest{
		Page:                      params.Page,
		PerPage:                   params.PerPage,
		QKeywords:                 params.Keywords,
		PersonLocations:           params.Locations,
		PersonTitles:              params.Titles,
		OrganizationIndustries:    params.Industries,
		OrganizationEmployeeRange: params.EmployeeRange,
	}

	var resp *apollo.SearchResponse
	err := a.gate.Do(ctx, "search", func(ctx context.Context) error {
		var err error
		resp, err = a.client.SearchPeople(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.CandidateLead, 0, len(resp.People))
	for _, p := range resp.People {
		c, ok := normalizePerson(p)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// EnrichOrganization looks up company details by domain.
func (a *ApolloAdapter) EnrichOrganization(ctx context.Context, domain string) (*model.OrgInfo, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, eris.Wrap(apperr.ErrValidation, "apollo: domain is required")
	}

	var org *apollo.Organization
	err := a.gate.Do(ctx, "enrich_organization", func(ctx context.Context) error {
		var err error
		org, err = a.client.EnrichOrganization(ctx, domain)
		return err
	})
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, eris.Wrapf(apperr.ErrNotFound, "apollo: organization for %s", domain)
	}

	return &model.OrgInfo{
		Name:         org.Name,
		Domain:       firstNonEmpty(org.PrimaryDomain, domain),
		Industry:     org.Industry,
		Size:         org.EstimatedNumEmployees,
		Location:     joinNonEmpty(org.City, org.Country),
		Description:  org.ShortDescription,
		FoundedYear:  org.FoundedYear,
		Technologies: org.Technologies,
	}, nil
}

func normalizePerson(p apollo.Person) (model.CandidateLead, bool) {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		name = strings.TrimSpace(p.Name)
	}
	email := model.NormalizeEmail(p.Email)
	if name == "" && email == "" {
		return model.CandidateLead{}, false
	}

	c := model.CandidateLead{
		Name:       normalizeName(name),
		Email:      email,
		Title:      strings.TrimSpace(p.Title),
		Location:   joinNonEmpty(p.City, p.State, p.Country),
		ProfileURL: strings.TrimSpace(p.LinkedInURL),
		Source:     NameApollo,
	}
	if len(p.PhoneNumbers) > 0 {
		c.Phone = firstNonEmpty(p.PhoneNumbers[0].RawNumber, p.PhoneNumbers[0].SanitizedNumber)
	}
	if org := p.Organization; org != nil {
		c.Company = strings.TrimSpace(org.Name)
		c.CompanyDomain = strings.ToLower(org.PrimaryDomain)
		c.CompanySize = org.EstimatedNumEmployees
		c.Industry = strings.TrimSpace(org.Industry)
	}
	if raw, err := json.Marshal(p); err == nil {
		c.Raw = raw
	}
	c.PreliminaryScore = PreliminaryScore(c)
	return c, true
}

// normalizeName title-cases names that arrive in a single case and leaves
// mixed-case names ("McArthur") alone.
func normalizeName(name string) string {
	if name != strings.ToLower(name) && name != strings.ToUpper(name) {
		return name
	}
	return cases.Title(language.English).String(name)
}

var (
	auBusinessSuffixes = []string{".com.au", ".org.au", ".net.au", ".gov.au"}
	webmailDomains     = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"}
)

// PreliminaryScore is Apollo's advisory score. The scoring engine computes
// the authoritative value.
func PreliminaryScore(c model.CandidateLead) int {
	score := 0
	if c.Email != "" {
		score += 20
		domain := model.EmailDomain(c.Email)
		if hasAnySuffix(domain, auBusinessSuffixes) {
			score += 5
		}
		if !containsString(webmailDomains, domain) {
			score += 5
		}
	}
	if c.Phone != "" {
		score += 20
	}
	if c.ProfileURL != "" {
		score += 15
	}
	if c.Company != "" {
		score += 10
		if c.CompanySize >= 50 && c.CompanySize <= 1000 {
			score += 5
		}
	}
	if c.Title != "" {
		score += 10
	}
	if c.Industry != "" {
		score += 5
	}
	if c.Location != "" {
		score += 5
	}
	return min(score, 100)
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
