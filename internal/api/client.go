package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const userAgent = "watchsync/0.1"

// TokenSource provides bearer tokens for the watchlist backend. Defined at
// the consumer per Go convention "accept interfaces, return structs". Tokens
// are re-derived on every request — including queued-mutation replays — so a
// token rotated between enqueue and replay is picked up automatically.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the watchlist REST backend. It handles
// request construction, authentication, and error classification. It does
// not retry: queued mutations are retried by drain passes and interactive
// operations by the retry controller, each with its own policy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a backend client. baseURL is the server root, e.g.
// "https://watch.example.com".
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// BaseURL returns the configured server root. The connectivity monitor
// probes it.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes one HTTP request against the backend. The path is appended to
// the client's base URL. header carries request-specific headers (e.g. an
// Idempotency-Key); Authorization is always set fresh from the TokenSource
// and any Authorization value in header is ignored. Returns the response
// body for 2xx, an *APIError for other statuses, and a wrapped transport
// error when the request never completed.
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, body []byte) ([]byte, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	for name, values := range header {
		if http.CanonicalHeaderKey(name) == "Authorization" {
			continue
		}

		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	if c.token != nil {
		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("api: obtaining token: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+tok)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if readErr != nil {
			return nil, fmt.Errorf("api: reading response body: %w", readErr)
		}

		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return respBody, nil
	}

	if readErr != nil {
		respBody = []byte("(failed to read response body)")
	}

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Message:    extractMessage(respBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// DoMutation replays a serialized mutation. Headers captured at enqueue time
// are forwarded except Authorization, which Do re-derives from the live
// TokenSource.
func (c *Client) DoMutation(ctx context.Context, m Mutation) ([]byte, error) {
	return c.Do(ctx, m.Method, m.Path, m.Header, m.Body)
}
