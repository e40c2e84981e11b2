package linkedin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/pkg/httperr"
)

const (
	defaultBaseURL  = "https://api.linkedin.com/v2"
	defaultTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
)

// Client reads organization data from the LinkedIn REST API.
type Client interface {
	Organization(ctx context.Context, id string) (*Organization, error)
}

// Organization is the subset of GET /organizations/{id} the pipeline uses.
type Organization struct {
	ID            int64    `json:"id"`
	LocalizedName string   `json:"localizedName"`
	VanityName    string   `json:"vanityName"`
	Website       string   `json:"localizedWebsite"`
	Description   string   `json:"localizedDescription"`
	StaffCount    string   `json:"staffCountRange"`
	Industries    []string `json:"industries"`
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

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(url string) Option {
	return func(c *httpClient) {
		c.tokenURL = url
	}
}

// WithAccessToken uses a pre-issued bearer token instead of the client
// credentials exchange.
func WithAccessToken(token string) Option {
	return func(c *httpClient) {
		if token != "" {
			c.token = token
			c.tokenExpiry = time.Time{}
			c.static = true
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
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	http         *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	static      bool
}

// NewClient creates a LinkedIn API client.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Organization(ctx context.Context, id string) (*Organization, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/organizations/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, eris.Wrap(err, "linkedin: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	var out Organization
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// accessToken returns a cached token, exchanging client credentials when
// none is cached or the cached one is about to expire.
func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.static || time.Until(c.tokenExpiry) > time.Minute) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "linkedin: create token request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", eris.New("linkedin: empty access token")
	}

	c.token = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "linkedin: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "linkedin: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return httperr.FromResponse("linkedin", resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "linkedin: unmarshal response")
	}
	return nil
}
