package pd

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

	"github.com/martindstone/martbot/src/models"
)

const (
	DefaultBaseURL = "https://api.pagerduty.com"

	// Every call carries the REST v2 Accept header.
	acceptHeader = "application/vnd.pagerduty+json;version=2"
)

// APIError is a non-2xx answer from the PagerDuty API. Handlers are expected
// to degrade to a user-visible error reply instead of dropping the
// interaction.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pagerduty: http %d: %s", e.StatusCode, e.Body)
}

// Client is a thin wrapper over the PagerDuty REST API. It holds no
// credentials itself; every request is made through a Session so a token is
// never separated from the subdomain it belongs to.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Session binds one linked user's token and subdomain together for the
// duration of a handler invocation.
type Session struct {
	client    *Client
	token     string
	Subdomain string
}

// NewSession builds a Session from a linked user's credential.
func (c *Client) NewSession(user *models.LinkedUser) *Session {
	return &Session{
		client:    c,
		token:     user.PDToken,
		Subdomain: user.PDSubdomain,
	}
}

// NewTokenSession builds a Session from a bare token, before any subdomain is
// known. Used by the linker while resolving the account's identity.
func (c *Client) NewTokenSession(token string) *Session {
	return &Session{
		client: c,
		token:  token,
	}
}

// Do performs one API call and decodes the JSON answer into out (out may be
// nil for calls whose body is not needed).
func (s *Session) Do(ctx context.Context, method, endpoint string, params url.Values, body interface{}, out interface{}) error {
	return s.do(ctx, method, endpoint, params, "", body, out)
}

// DoAs is Do with a From header. The API requires incident updates and note
// creation to be attributed to a PagerDuty user's email address.
func (s *Session) DoAs(ctx context.Context, method, endpoint, from string, body interface{}, out interface{}) error {
	return s.do(ctx, method, endpoint, nil, from, body, out)
}

func (s *Session) do(ctx context.Context, method, endpoint string, params url.Values, from string, body interface{}, out interface{}) error {
	requestURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(s.client.BaseURL, "/"), strings.TrimPrefix(endpoint, "/"))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("pd.Do: failed to marshal body: %w", err)
		}

		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("pd.Do: failed to create request: %w", err)
	}

	if params != nil {
		req.URL.RawQuery = params.Encode()
	}

	req.Header.Add("Accept", acceptHeader)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", s.token))
	if from != "" {
		req.Header.Add("From", from)
	}
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	res, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("pd.Do: %s %s failed: %w", method, endpoint, err)
	}

	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("pd.Do: failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pd.Do: failed to decode json: %w", err)
	}

	return nil
}

func (s *Session) Get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	return s.Do(ctx, http.MethodGet, endpoint, params, nil, out)
}

func (s *Session) Post(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	return s.Do(ctx, http.MethodPost, endpoint, nil, body, out)
}
