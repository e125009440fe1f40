package webcollect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "https://pay.securitybankcollect.com/api"
	DefaultTimeout = 30 * time.Second

	sessionsPath  = "/v2/sessions"
	customersPath = "/v2/customers"
)

// Client talks to the Security Bank WebCollect API. Each call is a single
// attempt bounded by the client timeout; nothing is retried.
type Client struct {
	BaseURL string
	client  *http.Client
	timeout time.Duration
	logger  Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is copied, so
// a later timeout never changes the caller's value.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout bounds each call, whichever HTTP client is in use.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.client
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.client = &hc
	return c
}

// endpoint describes what a path accepts as success and how its failures read.
type endpoint struct {
	path     string
	accepted []int
	fallback string
}

// Send posts body as JSON to path and returns the raw response body when the
// status is 200. See CreateSession and CreateCustomer for the typed calls.
func (c *Client) Send(ctx context.Context, method, path string, creds Credentials, body any) ([]byte, error) {
	return c.do(ctx, method, endpoint{path: path, accepted: []int{http.StatusOK}, fallback: "API request failed"}, creds, body)
}

func (c *Client) do(ctx context.Context, method string, ep endpoint, creds Credentials, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("webcollect: encode request: %w", err)
	}
	url := c.BaseURL + ep.path
	reqID := uuid.NewString()
	c.logger.Debug("API Request: "+method+" "+url, map[string]any{
		"request_id": reqID,
		"mode":       string(creds.Mode),
		"body":       string(payload),
	})
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("webcollect: build request: %w", err)
	}
	req.Header.Set("Authorization", creds.authorization())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Request failed: "+err.Error(), map[string]any{"request_id": reqID})
		return nil, &NetworkError{Op: method + " " + ep.path, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Reading response failed: "+err.Error(), map[string]any{"request_id": reqID})
		return nil, &NetworkError{Op: method + " " + ep.path, Err: err}
	}
	fields := map[string]any{
		"request_id": reqID,
		"status":     resp.StatusCode,
		"body":       string(respBody),
	}
	c.logger.Debug(fmt.Sprintf("API Response: %d", resp.StatusCode), fields)
	if !slices.Contains(ep.accepted, resp.StatusCode) {
		c.logger.Error(fmt.Sprintf("API Error: %d", resp.StatusCode), fields)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody, ep.fallback)}
	}
	return respBody, nil
}

// errorMessage extracts error.message from a failure body.
func errorMessage(body []byte, fallback string) string {
	var out struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Error.Message == "" {
		return fallback
	}
	return out.Error.Message
}

// CreateSession creates a hosted checkout session. The request is sent as
// given; callers validate it first.
func (c *Client) CreateSession(ctx context.Context, creds Credentials, req SessionRequest) (*SessionResult, error) {
	ep := endpoint{
		path:     sessionsPath,
		accepted: []int{http.StatusOK, http.StatusCreated},
		fallback: "API request failed",
	}
	body, err := c.do(ctx, http.MethodPost, ep, creds, req)
	if err != nil {
		return nil, err
	}
	var out SessionResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("%w: could not create checkout session", ErrMalformedResponse)
	}
	return &out, nil
}

// CreateCustomer registers a customer and returns its remote id. An empty
// description fails with a ValidationError before any request is made.
func (c *Client) CreateCustomer(ctx context.Context, creds Credentials, req CustomerRequest) (string, error) {
	if strings.TrimSpace(req.Description) == "" {
		return "", &ValidationError{Message: "description required"}
	}
	if req.Metadata == nil {
		req.Metadata = map[string]string{}
	}
	ep := endpoint{
		path:     customersPath,
		accepted: []int{http.StatusOK},
		fallback: "Customer creation failed",
	}
	body, err := c.do(ctx, http.MethodPost, ep, creds, req)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: customer id missing", ErrMalformedResponse)
	}
	return out.ID, nil
}
