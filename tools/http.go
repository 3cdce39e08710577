// Built-in HTTP fetch tool.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Request/response handling abstracted
// - Domain allowlist checks internalized

package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BuiltinGroup labels tools shipped with the engine.
const BuiltinGroup = "builtin"

// maxFetchBytes caps the response body handed back to the model.
const maxFetchBytes = 256 * 1024

// httpFetchSchema is the JSON schema for the http_fetch tool.
var httpFetchSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url": map[string]any{
			"type":        "string",
			"description": "The URL to request",
		},
		"method": map[string]any{
			"type":        "string",
			"description": "HTTP method (GET or POST)",
		},
		"body": map[string]any{
			"type":        "string",
			"description": "Request body for POST requests",
		},
	},
	"required": []string{"url"},
}

// HTTPFetcher services http_fetch tool calls.
type HTTPFetcher struct {
	client         *http.Client
	allowedDomains []string
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// WithAllowedDomains restricts requests to the given domains and their
// subdomains. An empty list allows everything.
func (f *HTTPFetcher) WithAllowedDomains(domains []string) *HTTPFetcher {
	f.allowedDomains = domains
	return f
}

// Register adds the http_fetch tool to a registry.
func (f *HTTPFetcher) Register(registry *Registry) error {
	return registry.Register(
		"http_fetch",
		"Make HTTP GET or POST requests to fetch data from URLs",
		httpFetchSchema,
		f.fetch,
		BuiltinGroup,
	)
}

func (f *HTTPFetcher) fetch(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	if !f.isDomainAllowed(rawURL) {
		return "", fmt.Errorf("access to domain in %q is not allowed", rawURL)
	}

	method := "GET"
	if m, ok := params["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return "", fmt.Errorf("only GET and POST methods are supported")
	}

	var reqBody io.Reader
	if body, ok := params["body"].(string); ok && body != "" {
		if method != "POST" {
			return "", fmt.Errorf("body is only supported for POST requests")
		}
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("request timed out")
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return fmt.Sprintf("Status: %s\n\n%s", resp.Status, string(body)), nil
	}
	return "", fmt.Errorf("HTTP error: %s\n\n%s", resp.Status, string(body))
}

// isDomainAllowed checks if the URL's domain is in the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (f *HTTPFetcher) isDomainAllowed(rawURL string) bool {
	if len(f.allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range f.allowedDomains {
		// Exact match or subdomain match
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
