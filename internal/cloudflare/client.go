// Package cloudflare queries the Cloudflare GraphQL analytics API and the
// REST API for zones and accounts.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/cf-usage-dashboard/internal/config"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
)

// ErrUnauthorized is returned when Cloudflare rejects the credentials.
var ErrUnauthorized = errors.New("cloudflare rejected the credentials")

const (
	defaultTimeout  = 30 * time.Second
	accountNamesTTL = 24 * time.Hour
)

// Client talks to the Cloudflare APIs with a single set of credentials.
type Client struct {
	httpClient *http.Client
	graphqlURL string
	baseURL    string

	apiToken string
	apiKey   string
	apiEmail string

	names *ttlcache.Cache[string, string]
	group singleflight.Group
}

// New creates a client from the process configuration. A nil httpClient uses
// a client with a 30 second timeout.
func New(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		httpClient: httpClient,
		graphqlURL: cfg.GraphQLEndpoint,
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		apiToken:   cfg.APIToken,
		apiKey:     cfg.APIKey,
		apiEmail:   cfg.APIEmail,
		names: ttlcache.New(
			ttlcache.WithTTL[string, string](accountNamesTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
		return
	}
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("X-Auth-Email", c.apiEmail)
}

// do sends req and returns the body of a 200 response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	return body, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query runs a GraphQL document and decodes its data into out.
func (c *Client) query(ctx context.Context, kind, q string, vars map[string]any, out any) (err error) {
	start := time.Now()
	defer func() {
		stats.SourceQueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		stats.SourceQueries.WithLabelValues(kind, result).Inc()
	}()

	body, err := sonic.Marshal(graphqlRequest{Query: q, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return err
	}

	var gqlResp graphqlResponse
	if err := sonic.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	if len(gqlResp.Data) == 0 {
		return fmt.Errorf("graphql response has no data")
	}

	if err := sonic.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", kind, err)
	}
	return nil
}

// get performs a REST GET relative to the API base URL.
func (c *Client) get(ctx context.Context, kind, path string, out any) (err error) {
	start := time.Now()
	defer func() {
		stats.SourceQueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		stats.SourceQueries.WithLabelValues(kind, result).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", kind, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
