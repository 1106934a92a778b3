// Package spores is the Go client for the Spores settlement API. Numeric
// fields travel as decimal strings and signatures as 0x-prefixed hex, exactly
// as the API expects them.
package spores

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

type Option func(*Client)

// WithAdminToken attaches a bearer token to every request, required for the
// /admin registry mutations.
func WithAdminToken(token string) Option {
	return func(c *Client) {
		c.adminToken = token
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrorResponse is the API's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the API's plain acknowledgment body.
type SuccessResponse struct {
	Message string `json:"message"`
}

// doRequest handles the common HTTP request/response logic used across all API calls
func (c *Client) doRequest(method, endpoint string, body []byte, queryParams url.Values) ([]byte, *int, error) {
	req, err := http.NewRequest(method, c.baseURL+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, nil, err
	}

	if queryParams != nil {
		req.URL.RawQuery = queryParams.Encode()
	}

	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			return nil, &resp.StatusCode, errors.Errorf("settlement api error: status %d", resp.StatusCode)
		}
		return nil, &resp.StatusCode, errors.Wrap(errors.New(errResp.Error), "settlement api error")
	}

	return respBody, &resp.StatusCode, nil
}

func (c *Client) get(endpoint string, queryParams url.Values, out interface{}) (*int, error) {
	body, status, err := c.doRequest(http.MethodGet, endpoint, nil, queryParams)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, err
	}
	return status, nil
}

func (c *Client) send(method, endpoint string, in, out interface{}) (*int, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, err
		}
	}
	body, status, err := c.doRequest(method, endpoint, payload, nil)
	if err != nil {
		return status, err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return status, err
		}
	}
	return status, nil
}

// Health reports whether the API is up.
func (c *Client) Health() (bool, error) {
	var resp struct {
		Status string `json:"status"`
	}
	_, err := c.get("/health", nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Status == "ok", nil
}
