// Package client is a typed HTTP client for the stream gateway API.
package client

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

	"stream-gateway/internal/gateway"
	"stream-gateway/internal/platform/ratelimit"
)

// ErrRateLimited is matched by an APIError for a 429 response.
var ErrRateLimited = errors.New("rate limited")

// APIError is a non-success response from the gateway.
type APIError struct {
	Status int
	// Kind is the outcome name from a JSON error body, empty for plain-text bodies.
	Kind string
	Body string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Kind)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Unwrap maps the response onto the gateway's sentinel errors so callers can
// use errors.Is(err, gateway.ErrUserNotFound) and friends.
func (e *APIError) Unwrap() error {
	switch gateway.OutcomeKind(e.Kind) {
	case gateway.OutcomeUserNotFound:
		return gateway.ErrUserNotFound
	case gateway.OutcomeVideoNotFound:
		return gateway.ErrVideoNotFound
	case gateway.OutcomeInvalidRequest:
		return gateway.ErrInvalidRequest
	case gateway.OutcomeLockUnavailable:
		return gateway.ErrLockUnavailable
	}
	switch e.Status {
	case http.StatusNotFound:
		return gateway.ErrRouteNotFound
	case http.StatusServiceUnavailable:
		return gateway.ErrOverloaded
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Client calls a single gateway instance.
type Client struct {
	base    *url.URL
	apiKey  string
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as the X-Api-Key credential on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying http.Client. A nil hc keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request end to end. A client passed to
// WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New returns a Client for the gateway at baseURL, e.g. http://127.0.0.1:3000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("gateway url %q: missing host", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// Stream asks whether userID may stream videoID.
func (c *Client) Stream(ctx context.Context, userID gateway.UserID, videoID gateway.VideoID) (gateway.StreamResult, error) {
	q := url.Values{"user_id": {string(userID)}, "video_id": {string(videoID)}}
	var out gateway.StreamResult
	err := c.do(ctx, http.MethodGet, "/stream", q, nil, &out)
	return out, err
}

// RegisterUser creates or replaces the session for userID.
func (c *Client) RegisterUser(ctx context.Context, userID gateway.UserID, bitrate int) (gateway.UserSession, error) {
	body := map[string]any{"user_id": userID, "bitrate": bitrate}
	var out gateway.UserSession
	err := c.do(ctx, http.MethodPost, "/users", nil, body, &out)
	return out, err
}

// UpdateBitrate changes the bitrate of an existing session.
func (c *Client) UpdateBitrate(ctx context.Context, userID gateway.UserID, bitrate int) (gateway.UserSession, error) {
	body := map[string]any{"bitrate": bitrate}
	var out gateway.UserSession
	err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(string(userID))+"/bitrate", nil, body, &out)
	return out, err
}

// GetSession returns the session for userID.
func (c *Client) GetSession(ctx context.Context, userID gateway.UserID) (gateway.UserSession, error) {
	var out gateway.UserSession
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(string(userID)), nil, nil, &out)
	return out, err
}

// RemoveUser deletes the session for userID.
func (c *Client) RemoveUser(ctx context.Context, userID gateway.UserID) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(string(userID)), nil, nil, nil)
}

// GetVideo returns the catalog entry for videoID.
func (c *Client) GetVideo(ctx context.Context, videoID gateway.VideoID) (gateway.Video, error) {
	var out gateway.Video
	err := c.do(ctx, http.MethodGet, "/videos/"+url.PathEscape(string(videoID)), nil, nil, &out)
	return out, err
}

// MasterPlaylist returns the HLS master playlist for videoID. A non-empty
// userID lists that session's rendition first.
func (c *Client) MasterPlaylist(ctx context.Context, videoID gateway.VideoID, userID gateway.UserID) (string, error) {
	var q url.Values
	if userID != "" {
		q = url.Values{"user_id": {string(userID)}}
	}
	var buf bytes.Buffer
	err := c.do(ctx, http.MethodGet, "/videos/"+url.PathEscape(string(videoID))+"/master.m3u8", q, nil, &buf)
	return buf.String(), err
}

// do sends one request. out may be nil, a *bytes.Buffer for raw bodies, or a
// value to JSON-decode into.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	// path segments are already escaped by the caller
	u, err := url.Parse(c.base.String() + path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(ratelimit.CredentialHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *bytes.Buffer:
		_, err = dst.ReadFrom(resp.Body)
	default:
		err = json.NewDecoder(resp.Body).Decode(dst)
	}
	if err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	apiErr := &APIError{Status: resp.StatusCode, Body: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var eb struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Kind = eb.Error
		}
	}
	return apiErr
}
