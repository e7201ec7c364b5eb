// Package client is the JSON-over-HTTP transport every remote call goes
// through. It never interprets status codes; callers decide what a response
// means.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Doer executes a request. The session guard and the raw client both
// satisfy it so components can be wired either way.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one remote call
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// NewRequest creates a request; body is JSON encoded when non-nil
func NewRequest(method, path string, body any) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Body:   body,
		Header: make(http.Header),
	}
}

// Clone copies the request so a replay can carry different headers
func (r *Request) Clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	return &out
}

// Mutating reports whether the call changes server state
func (r *Request) Mutating() bool {
	switch strings.ToUpper(r.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// Response is a fully read response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// BodyErr is set when the status line arrived but the body could not be
	// read in full
	BodyErr error
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ApiClient handles API requests to the restaurant backend
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
	base       *url.URL
}

// Option configures the client
type Option func(*ApiClient)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *ApiClient) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying client. Its cookie jar is kept if
// set, otherwise one is created.
func WithHTTPClient(h *http.Client) Option {
	return func(c *ApiClient) {
		jar := c.httpClient.Jar
		c.httpClient = h
		if c.httpClient.Jar == nil {
			c.httpClient.Jar = jar
		}
	}
}

// New creates a new API client
func New(baseURL string, opts ...Option) (*ApiClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &ApiClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
		BaseURL: base.String(),
		base:    base,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Do sends the request. A non-nil error means no status line was received.
func (c *ApiClient) Do(ctx context.Context, r *Request) (*Response, error) {
	var reader io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s: %w", r.Method, r.Path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.BaseURL+r.Path, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	out.Body, out.BodyErr = io.ReadAll(resp.Body)
	return out, nil
}

// Cookie returns the value of the named cookie the backend set, if any
func (c *ApiClient) Cookie(name string) string {
	if c.httpClient.Jar == nil {
		return ""
	}
	for _, cookie := range c.httpClient.Jar.Cookies(c.base) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

// ClearCookies drops every cookie, which ends the server-side session as far
// as this client is concerned
func (c *ApiClient) ClearCookies() {
	jar, err := cookiejar.New(nil)
	if err == nil {
		c.httpClient.Jar = jar
	}
}

// CheckHealth checks if the API is up and running
func (c *ApiClient) CheckHealth(ctx context.Context) (bool, error) {
	resp, err := c.Do(ctx, NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API health check failed with status code: %d", resp.StatusCode)
	}
	return true, nil
}
