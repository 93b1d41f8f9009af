package labelbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the uniform outcome of one API call. Err is set for transport
// failures and error-shaped responses alike; callers branch on the result
// shape instead of catching anything. Response holds the raw error payload
// when the server sent one.
type Result struct {
	Data     json.RawMessage
	Err      error
	Status   int
	Response json.RawMessage
}

// NotFound reports a 404-class outcome, which callers treat as absence
// rather than failure.
func (r Result) NotFound() bool {
	return r.Status == http.StatusNotFound
}

// Decode unmarshals the result's data payload into dest.
func (r Result) Decode(dest any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Transport dispatches one logical API method. It is implemented by *Client
// and by test fakes; it never returns an error out of band, failures travel
// inside the Result.
type Transport interface {
	Call(ctx context.Context, method string, params url.Values, body any) Result
}

// Ensure Client implements Transport at compile time.
var _ Transport = (*Client)(nil)

// endpoint maps a logical method name to its HTTP shape. A ":id" segment is
// substituted from the "id" request parameter.
type endpoint struct {
	verb string
	path string
}

var endpoints = map[string]endpoint{
	"project":      {http.MethodGet, "/api/project"},
	"users":        {http.MethodGet, "/api/users"},
	"tasks":        {http.MethodGet, "/api/tasks"},
	"task":         {http.MethodGet, "/api/tasks/:id"},
	"nextTask":     {http.MethodGet, "/api/tasks/next"},
	"annotations":  {http.MethodGet, "/api/annotations"},
	"annotation":   {http.MethodGet, "/api/annotations/:id"},
	"tabs":         {http.MethodGet, "/api/tabs"},
	"columns":      {http.MethodGet, "/api/columns"},
	"actions":      {http.MethodGet, "/api/actions"},
	"invokeAction": {http.MethodPost, "/api/actions/:id"},
}

// Client talks to the Labelbase HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultServer    = "127.0.0.1:8080"
	defaultUserAgent = "curator/0.1"
	requestTimeout   = 15 * time.Second
)

// NewClient builds a Client for the given host:port or URL.
func NewClient(server string) (*Client, error) {
	base, err := parseBaseURL(server)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// Call dispatches the named method. Unknown method names and transport
// failures come back as error-shaped Results, never as panics or out-of-band
// errors.
func (c *Client) Call(ctx context.Context, method string, params url.Values, body any) Result {
	if c == nil {
		return Result{Err: fmt.Errorf("client is nil")}
	}
	ep, ok := endpoints[method]
	if !ok {
		return Result{Err: fmt.Errorf("unknown api method %q", method)}
	}

	path := ep.path
	if strings.Contains(path, ":id") {
		id := params.Get("id")
		if id == "" {
			return Result{Err: fmt.Errorf("api method %q requires an id parameter", method)}
		}
		params = cloneValues(params)
		params.Del("id")
		path = strings.Replace(path, ":id", url.PathEscape(id), 1)
	}

	rel := &url.URL{Path: path, RawQuery: params.Encode()}
	reqURL := c.baseURL.ResolveReference(rel)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Result{Err: fmt.Errorf("encode request body: %w", err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, ep.verb, reqURL.String(), reqBody)
	if err != nil {
		return Result{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return Result{
			Status:   resp.StatusCode,
			Response: payload,
			Err:      fmt.Errorf("api %s returned status %d", path, resp.StatusCode),
		}
	}
	return Result{Status: resp.StatusCode, Data: payload}
}

func cloneValues(values url.Values) url.Values {
	dup := make(url.Values, len(values))
	for k, v := range values {
		dup[k] = append([]string(nil), v...)
	}
	return dup
}

func parseBaseURL(server string) (*url.URL, error) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		trimmed = defaultServer
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server %q: %w", server, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
