// Package azure implements the Azure Resource Manager REST client used by
// the capability and quota subsystems: client-credentials token flow plus
// authenticated GETs with retry on transient failures.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/bschooled/azure-regional-analysis/internal/config"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
	"github.com/bschooled/azure-regional-analysis/internal/logging"
)

// Client is an authenticated ARM REST client. Safe for concurrent use.
type Client struct {
	httpClient     *retryablehttp.Client
	managementURL  string
	loginURL       string
	tenantID       string
	clientID       string
	clientSecret   string
	subscriptionID string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// TokenResponse represents the Azure AD token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewClient creates an ARM client from application configuration.
func NewClient(cfg *config.Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Analysis.RetryMax
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.HTTPClient.Timeout = cfg.Azure.HTTPTimeout
	// retryablehttp's own logger is noisy; retries are logged by callers
	rc.Logger = nil

	return &Client{
		httpClient:     rc,
		managementURL:  strings.TrimRight(cfg.Azure.ManagementURL, "/"),
		loginURL:       strings.TrimRight(cfg.Azure.LoginURL, "/"),
		tenantID:       cfg.Azure.TenantID,
		clientID:       cfg.Azure.ClientID,
		clientSecret:   cfg.Azure.ClientSecret,
		subscriptionID: cfg.Azure.SubscriptionID,
	}
}

// HasSession reports whether credentials for a subscription context are
// configured.
func (c *Client) HasSession() bool {
	return c.tenantID != "" && c.clientID != "" && c.clientSecret != "" && c.subscriptionID != ""
}

// SubscriptionID returns the configured subscription.
func (c *Client) SubscriptionID() string {
	return c.subscriptionID
}

// SubscriptionPath prefixes a relative ARM path with the subscription scope.
func (c *Client) SubscriptionPath(suffix string) string {
	return fmt.Sprintf("/subscriptions/%s%s", c.subscriptionID, suffix)
}

// GetJSON performs an authenticated GET against path (relative to the
// management endpoint) and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if !c.HasSession() {
		return domain.ErrNoSession
	}

	token, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	u := c.managementURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, u)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, u)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ARM request failed (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParseError, err)
	}
	return nil
}

// getAccessToken gets or refreshes the Azure AD access token
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Return cached token if still valid
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-5*time.Minute)) {
		return c.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginURL, c.tenantID)

	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("scope", c.managementURL+"/.default")
	data.Set("grant_type", "client_credentials")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	logging.Debug("Azure access token obtained, expires in %d seconds", tokenResp.ExpiresIn)
	return c.accessToken, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
