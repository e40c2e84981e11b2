package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/pkg/httperr"
)

const (
	defaultBaseURL = "https://api.apollo.io/v1"
	// MaxPerPage is the largest page size the people search accepts.
	MaxPerPage = 100
)

// Client talks to the Apollo people search and organization enrichment APIs.
type Client interface {
	SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
}

// SearchRequest is the body for POST /mixed_people/search.
type SearchRequest struct {
	Page                      int      `json:"page"`
	PerPage                   int      `json:"per_page"`
	QKeywords                 string   `json:"q_keywords,omitempty"`
	PersonLocations           []string `json:"person_locations,omitempty"`
	PersonTitles              []string `json:"person_titles,omitempty"`
	OrganizationIndustries    []string `json:"organization_industries,omitempty"`
	OrganizationEmployeeRange []string `json:"organization_num_employees_ranges,omitempty"`
}

// SearchResponse is the people search result page.
type SearchResponse struct {
	People     []Person   `json:"people"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the result set size.
type Pagination struct {
	Page         int `json:"page"`
	PerPage      int `json:"per_page"`
	TotalEntries int `json:"total_entries"`
	TotalPages   int `json:"total_pages"`
}

// Person is one contact record.
type Person struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Title        string        `json:"title"`
	City         string        `json:"city"`
	State        string        `json:"state"`
	Country      string        `json:"country"`
	LinkedInURL  string        `json:"linkedin_url"`
	PhoneNumbers []PhoneNumber `json:"phone_numbers"`
	Organization *Organization `json:"organization"`
}

// PhoneNumber is a contact phone entry.
type PhoneNumber struct {
	RawNumber       string `json:"raw_number"`
	SanitizedNumber string `json:"sanitized_number"`
}

// Organization is the company record attached to a person or returned by enrichment.
type Organization struct {
	Name                  string   `json:"name"`
	PrimaryDomain         string   `json:"primary_domain"`
	WebsiteURL            string   `json:"website_url"`
	Industry              string   `json:"industry"`
	EstimatedNumEmployees int      `json:"estimated_num_employees"`
	ShortDescription      string   `json:"short_description"`
	FoundedYear           int      `json:"founded_year"`
	City                  string   `json:"city"`
	Country               string   `json:"country"`
	Technologies          []string `json:"technology_names"`
}

type searchBody struct {
	APIKey string `json:"api_key"`
	SearchRequest
}

type enrichResponse struct {
	Organization *Organization `json:"organization"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apollo API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PerPage <= 0 || req.PerPage > MaxPerPage {
		req.PerPage = MaxPerPage
	}

	var out SearchResponse
	if err := c.post(ctx, "/mixed_people/search", searchBody{APIKey: c.apiKey, SearchRequest: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	body := map[string]string{"api_key": c.apiKey, "domain": domain}

	var out enrichResponse
	if err := c.post(ctx, "/organizations/enrich", body, &out); err != nil {
		return nil, err
	}
	return out.Organization, nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "apollo: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "apollo: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "apollo: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return httperr.FromResponse("apollo", resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "apollo: unmarshal response")
	}
	return nil
}
