// Package annotation talks to the annotation engine's session API.
package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/bridge"
)

const maxResponseBytes = 64 << 10

// Options configure a Client.
type Options struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	// RPS and Burst pace outbound calls; zero RPS disables pacing.
	RPS   float64
	Burst int
	HTTP  *http.Client
}

// Client implements bridge.Engine over HTTP.
type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

var _ bridge.Engine = (*Client)(nil)

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("annotation: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("annotation: base url %q must be http or https", opts.BaseURL)
	}
	c := &Client{
		base:    base,
		token:   opts.ServiceToken,
		timeout: opts.Timeout,
		http:    opts.HTTP,
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c, nil
}

// BaseURL returns a copy of the engine's base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

type issueBody struct {
	PrincipalID string   `json:"principal_id"`
	ProjectID   string   `json:"project_id"`
	Role        string   `json:"role"`
	Scopes      []string `json:"scopes"`
	TTLSeconds  int64    `json:"ttl_seconds"`
}

type issueResponse struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue asks the engine for a scoped credential.
func (c *Client) Issue(ctx context.Context, req bridge.IssueRequest) (bridge.Credential, error) {
	payload, err := json.Marshal(issueBody{
		PrincipalID: req.PrincipalID,
		ProjectID:   req.ProjectID,
		Role:        req.Role.String(),
		Scopes:      req.Scopes,
		TTLSeconds:  int64(req.TTL / time.Second),
	})
	if err != nil {
		return bridge.Credential{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/sessions", payload)
	if err != nil {
		return bridge.Credential{}, err
	}
	defer resp.Body.Close()
	if err := classify(resp); err != nil {
		return bridge.Credential{}, err
	}
	var out issueResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return bridge.Credential{}, fmt.Errorf("%w: decode session: %v", bridge.ErrUnavailable, err)
	}
	if out.ID == "" || out.Token == "" {
		return bridge.Credential{}, fmt.Errorf("%w: engine returned an empty credential", bridge.ErrUnavailable)
	}
	return bridge.Credential{ID: out.ID, Token: out.Token, ExpiresAt: out.ExpiresAt.UTC()}, nil
}

// Invalidate drops a credential. A credential the engine no longer knows
// counts as invalidated.
func (c *Client) Invalidate(ctx context.Context, credentialID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(credentialID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return classify(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: pacing: %v", bridge.ErrUnavailable, err)
		}
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := audit.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s %s: %v", bridge.ErrUnavailable, method, path, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// classify maps an engine status onto the bridge's error kinds.
func classify(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	msg := readMessage(resp.Body)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", bridge.ErrUnauthorized, code, msg)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d: %s", bridge.ErrUnavailable, code, msg)
	default:
		return fmt.Errorf("annotation: unexpected status %d: %s", code, msg)
	}
}

func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
