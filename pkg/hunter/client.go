package hunter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/pkg/httperr"
)

const (
	defaultBaseURL = "https://api.hunter.io/v2"
	// MaxDomainSearchLimit is the largest page the domain search returns.
	MaxDomainSearchLimit = 100
)

// Client talks to the Hunter email verification and domain search APIs.
type Client interface {
	VerifyEmail(ctx context.Context, email string) (*Verification, error)
	DomainSearch(ctx context.Context, req DomainSearchRequest) (*DomainSearchResult, error)
}

// Verification is the data block of GET /email-verifier.
type Verification struct {
	Email      string `json:"email"`
	Status     string `json:"status"`
	Result     string `json:"result"`
	Score      int    `json:"score"`
	Webmail    bool   `json:"webmail"`
	Disposable bool   `json:"disposable"`
	AcceptAll  bool   `json:"accept_all"`
	MXRecords  bool   `json:"mx_records"`
	SMTPCheck  bool   `json:"smtp_check"`
}

// DomainSearchRequest holds the query for GET /domain-search.
type DomainSearchRequest struct {
	Domain     string
	Limit      int
	Department string
}

// DomainSearchResult is the data block of GET /domain-search.
type DomainSearchResult struct {
	Domain       string        `json:"domain"`
	Organization string        `json:"organization"`
	Emails       []DomainEmail `json:"emails"`
}

// DomainEmail is one address found for a domain.
type DomainEmail struct {
	Value      string `json:"value"`
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	LinkedIn   string `json:"linkedin"`
	Phone      string `json:"phone_number"`
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

// NewClient creates a Hunter API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
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

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (*Verification, error) {
	q := url.Values{}
	q.Set("email", email)

	var out struct {
		Data Verification `json:"data"`
	}
	if err := c.get(ctx, "/email-verifier", q, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *httpClient) DomainSearch(ctx context.Context, req DomainSearchRequest) (*DomainSearchResult, error) {
	limit := req.Limit
	if limit <= 0 || limit > MaxDomainSearchLimit {
		limit = MaxDomainSearchLimit
	}

	q := url.Values{}
	q.Set("domain", req.Domain)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("type", "personal")
	if req.Department != "" {
		q.Set("department", req.Department)
	}

	var out struct {
		Data DomainSearchResult `json:"data"`
	}
	if err := c.get(ctx, "/domain-search", q, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("api_key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "hunter: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "hunter: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "hunter: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return httperr.FromResponse("hunter", resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "hunter: unmarshal response")
	}
	return nil
}
