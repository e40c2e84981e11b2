package provider

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/linkedin"
)

// Profile types reported by ValidateProfileURL.
const (
	ProfilePersonal = "personal"
	ProfileCompany  = "company"
)

// LinkedInAdapter validates profile URLs and reads company pages.
type LinkedInAdapter struct {
	client linkedin.Client
	gate   *Gate
}

// NewLinkedInAdapter creates the adapter. Both client credentials are
// required.
func NewLinkedInAdapter(clientID, clientSecret string, gate *Gate, opts ...linkedin.Option) (*LinkedInAdapter, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, eris.Wrap(apperr.ErrConfiguration, "linkedin: client id and secret are required")
	}
	return &LinkedInAdapter{client: linkedin.NewClient(clientID, clientSecret, opts...), gate: gate}, nil
}

// Gate exposes the adapter's shared gate.
func (l *LinkedInAdapter) Gate() *Gate { return l.gate }

// ValidateProfileURL checks the shape of a profile URL locally. It makes no
// network call and spends no quota.
func (l *LinkedInAdapter) ValidateProfileURL(_ context.Context, raw string) (*model.ProfileValidation, error) {
	return ValidateProfileURL(raw), nil
}

// ValidateProfileURL classifies a LinkedIn URL and extracts the member id
// from /in/{id} paths.
func ValidateProfileURL(raw string) *model.ProfileValidation {
	res := &model.ProfileValidation{URL: raw}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		res.Issues = append(res.Issues, "URL is empty")
		return res
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(strings.ToLower(u.Host), "linkedin.com") {
		res.Issues = append(res.Issues, "Not a LinkedIn URL")
		return res
	}

	path := u.Path
	switch {
	case strings.Contains(path, "/in/"):
		res.ProfileType = ProfilePersonal
		id := path[strings.Index(path, "/in/")+len("/in/"):]
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		if id == "" {
			res.Issues = append(res.Issues, "Could not extract profile ID")
			return res
		}
		res.ExtractedID = id
		res.IsValid = true
	case strings.Contains(path, "/company/"):
		res.ProfileType = ProfileCompany
		res.Issues = append(res.Issues, "Company URLs not supported for profile enrichment")
	default:
		res.Issues = append(res.Issues, "Unrecognized LinkedIn URL format")
	}
	return res
}

// CompanyInfo reads an organization page by numeric id.
func (l *LinkedInAdapter) CompanyInfo(ctx context.Context, companyID string) (*model.OrgInfo, error) {
	companyID = strings.TrimSpace(companyID)
	if _, err := strconv.ParseInt(companyID, 10, 64); err != nil {
		return nil, eris.Wrapf(apperr.ErrValidation, "linkedin: company id %q is not numeric", companyID)
	}

	var org *linkedin.Organization
	err := l.gate.Do(ctx, "organization", func(ctx context.Context) error {
		var err error
		org, err = l.client.Organization(ctx, companyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	info := &model.OrgInfo{
		Name:        org.LocalizedName,
		Domain:      domainOf(org.Website),
		Description: org.Description,
	}
	if len(org.Industries) > 0 {
		info.Industry = org.Industries[0]
	}
	return info, nil
}

func domainOf(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
