// Package backend is the HTTP client for the clinical RAG backend. Every
// request carries the static X-API-Key header and every failure comes back
// as either an *HTTPError or a *TransportError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scribedesk/internal/config"
)

const apiKeyHeader = "X-API-Key"

// Client talks to the documents and summaries services.
type Client struct {
	apiKey       string
	documentsURL string
	summariesURL string
	httpClient   *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client from an explicit backend configuration.
func New(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("backend api key is not configured")
	}
	if cfg.DocumentsBaseURL == "" {
		return nil, errors.New("backend documents url is not configured")
	}
	summaries := cfg.SummariesBaseURL
	if summaries == "" {
		summaries = cfg.DocumentsBaseURL
	}
	c := &Client{
		apiKey:       cfg.APIKey,
		documentsURL: strings.TrimRight(cfg.DocumentsBaseURL, "/"),
		summariesURL: strings.TrimRight(summaries, "/"),
		httpClient:   &http.Client{Timeout: cfg.Timeout()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req and decodes a JSON success body into out when out is not nil.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeHTTPError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url, op string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode %s payload: %w", op, err)
		}
		body = buf
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, url, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, op, out)
}
