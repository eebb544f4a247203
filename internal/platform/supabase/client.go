// Package supabase implements the platform against a hosted Supabase project
// through its PostgREST and GoTrue HTTP APIs.
package supabase

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

	"github.com/bissquit/leavedesk/internal/platform"
)

const (
	defaultTimeout  = 10 * time.Second
	uniqueViolation = "23505"
	maxErrorBody    = 64 << 10
)

// Config holds Supabase connection settings.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client implements platform.Platform over HTTP.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// NewClient validates cfg and creates a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase: url is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("supabase: api key is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: parse url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("supabase: url %q must be absolute", cfg.URL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Select returns the rows of table matching all filters.
func (c *Client) Select(ctx context.Context, table string, filters ...platform.Filter) (platform.Result, error) {
	q := url.Values{"select": {"*"}}
	if err := addFilters(q, filters); err != nil {
		return platform.Result{}, err
	}
	return c.rest(ctx, http.MethodGet, table, q, nil)
}

// Insert adds row to table and returns the stored representation.
func (c *Client) Insert(ctx context.Context, table string, row platform.Row) (platform.Result, error) {
	return c.rest(ctx, http.MethodPost, table, url.Values{}, row)
}

// Update patches the rows matching all filters and returns them.
func (c *Client) Update(ctx context.Context, table string, patch platform.Row, filters ...platform.Filter) (platform.Result, error) {
	q := url.Values{}
	if err := addFilters(q, filters); err != nil {
		return platform.Result{}, err
	}
	return c.rest(ctx, http.MethodPatch, table, q, patch)
}

// Ping checks that the REST endpoint accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkAvailability(resp); err != nil {
		return err
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// SignInWithPassword exchanges credentials for a session and returns its user.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*platform.AuthUser, error) {
	body := map[string]string{"email": email, "password": password}
	q := url.Values{"grant_type": {"password"}}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", q, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		// invalid_grant: unknown email or wrong password
		return nil, nil
	default:
		return nil, responseError("sign in", resp)
	}

	var session struct {
		User *authUserPayload `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("sign in: decode response: %w", err)
	}
	if session.User == nil {
		return nil, nil
	}
	return session.User.toAuthUser(), nil
}

// GetUser resolves a bearer token to the user it was issued for.
func (c *Client) GetUser(ctx context.Context, token string) (*platform.AuthUser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, nil
	default:
		return nil, responseError("get user", resp)
	}

	var payload authUserPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("get user: decode response: %w", err)
	}
	if payload.ID == "" {
		return nil, nil
	}
	return payload.toAuthUser(), nil
}

type authUserPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (p *authUserPayload) toAuthUser() *platform.AuthUser {
	return &platform.AuthUser{
		ID:           p.ID,
		Email:        p.Email,
		UserMetadata: p.UserMetadata,
	}
}

// postgrestError is the error body returned by PostgREST.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (c *Client) rest(ctx context.Context, method, table string, q url.Values, body any) (platform.Result, error) {
	op := strings.ToLower(method) + " " + table

	req, err := c.newRequest(ctx, method, "/rest/v1/"+table, q, body)
	if err != nil {
		return platform.Result{}, err
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.do(req)
	if err != nil {
		return platform.Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return platform.Result{}, responseError(op, resp)
	}

	var rows []platform.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
		return platform.Result{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return platform.Result{Rows: rows}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", req.Method, req.URL.Path, platform.ErrUnavailable, err)
	}
	return resp, nil
}

// checkAvailability maps responses that mean the platform cannot serve us.
func checkAvailability(resp *http.Response) error {
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("platform responded %d: %w", resp.StatusCode, platform.ErrUnavailable)
	}
	return nil
}

func responseError(op string, resp *http.Response) error {
	if err := checkAvailability(resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var pgErr postgrestError
	if json.Unmarshal(data, &pgErr) == nil && pgErr.Message != "" {
		if pgErr.Code == uniqueViolation || resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("%s: %w: %s", op, platform.ErrConflict, pgErr.Message)
		}
		return fmt.Errorf("%s: %s", op, pgErr.Message)
	}
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%s: %w", op, platform.ErrConflict)
	}
	return fmt.Errorf("%s: platform responded %d: %s", op, resp.StatusCode, strings.TrimSpace(string(data)))
}

func addFilters(q url.Values, filters []platform.Filter) error {
	for _, f := range filters {
		switch f.Op {
		case platform.OpEq:
			q.Add(f.Column, "eq."+fmt.Sprint(f.Value))
		case platform.OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return fmt.Errorf("filter %s: in expects []string", f.Column)
			}
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
			}
			q.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return nil
}
