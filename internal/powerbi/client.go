// Package powerbi is a small client for the push dataset endpoints of the
// Power BI REST API.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.powerbi.com/v1.0/myorg.
	BaseURL string
	// Group is the workspace id every call is scoped to.
	Group string
	// PostsPerMinute throttles row posts. Zero disables throttling.
	PostsPerMinute int
}

// Client calls the push dataset endpoints of one workspace.
type Client struct {
	baseURL string
	group   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a client. httpClient must attach credentials; see NewHTTPClient.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := rate.Inf
	if cfg.PostsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.PostsPerMinute))
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		group:   cfg.Group,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (c *Client) groupPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "groups", url.PathEscape(c.group))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

// do sends a request with an optional JSON body and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(payload)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
