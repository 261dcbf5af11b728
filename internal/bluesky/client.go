package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blackmichael/sentiment-collector/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultPDS      = "https://bsky.social"
	defaultPageSize = 100
)

// Client is a minimal BlueSky/AT Protocol API client for searching posts.
// It implements domain.SearchClient.
type Client struct {
	pds        string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int

	// populated after Login
	accessJwt string
	did       string
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the number of posts requested per search page (1..100).
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= defaultPageSize {
			c.pageSize = n
		}
	}
}

// WithRateLimit throttles search requests to rps requests per second.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new BlueSky API client. If pds is empty, it defaults to
// https://bsky.social.
func NewClient(pds string, opts ...Option) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	c := &Client{
		pds: pds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Inf, 0),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates with the PDS and stores the session token. Use an App
// Password, not your account password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp createSessionResponse
	if err := c.post(ctx, "/xrpc/com.atproto.server.createSession", body, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	return nil
}

// DID returns the authenticated user's DID. Only valid after Login.
func (c *Client) DID() string {
	return c.did
}

// Search fetches one page of app.bsky.feed.searchPosts results. HTTP 429
// responses are reported as domain.ErrRateLimited.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error) {
	params := url.Values{}
	params.Set("q", query.Tags)
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("sort", "latest")
	if query.Since != "" {
		params.Set("since", query.Since)
	}
	if query.Until != "" {
		params.Set("until", query.Until)
	}
	if query.Cursor != "" {
		params.Set("cursor", query.Cursor)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	var resp searchPostsResponse
	if err := c.get(ctx, "/xrpc/app.bsky.feed.searchPosts", params, &resp); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}

	page := &domain.SearchPage{
		Posts: make([]domain.Post, 0, len(resp.Posts)),
		// The service echoes a cursor on the last page; an empty page ends
		// the traversal.
		Cursor: resp.Cursor,
	}
	if len(resp.Posts) == 0 {
		page.Cursor = ""
	}
	for _, pv := range resp.Posts {
		page.Posts = append(page.Posts, pv.toPost())
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pds+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: reset %s: %s", domain.ErrRateLimited, resp.Header.Get("RateLimit-Reset"), string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}
