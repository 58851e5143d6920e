// Package twintest starts an in-process story twin for tests and provides
// HTTP client and assertion helpers against it.
package twintest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/storyspoiler/storycheck/internal/twin/story"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

// Fixture credentials seeded into every test twin.
const (
	Username  = "yoanipetrov"
	Password  = "123456abv"
	JWTSecret = "twintest-secret"
)

// Start runs a story twin behind httptest.NewServer and closes it when the
// test ends. Bcrypt runs at minimum cost to keep tests fast.
func Start(t testing.TB) (*story.Twin, *httptest.Server) {
	t.Helper()
	tw, err := story.New(&twincore.Config{Name: story.Name}, story.Options{
		Username:   Username,
		Password:   Password,
		JWTSecret:  JWTSecret,
		BcryptCost: bcrypt.MinCost,
	}, nil)
	if err != nil {
		t.Fatalf("starting story twin: %v", err)
	}
	srv := httptest.NewServer(tw)
	t.Cleanup(srv.Close)
	return tw, srv
}

// TwinClient is an HTTP client for a twin in tests.
type TwinClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string // sent as a Bearer token when set
	t          testing.TB
}

// NewTwinClient creates a client pointed at a test server.
func NewTwinClient(t testing.TB, server *httptest.Server) *TwinClient {
	return &TwinClient{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		t:          t,
	}
}

// NewTwinClientURL creates a client pointed at a specific URL.
func NewTwinClientURL(t testing.TB, baseURL string) *TwinClient {
	return &TwinClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		t:          t,
	}
}

// Response wraps an HTTP response with helper methods.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          testing.TB
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) {
	r.t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, string(r.Body))
	}
}

// JSONMap returns the response body as a map.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	r.JSON(&m)
	return m
}

// Msg returns the msg field of the response envelope.
func (r *Response) Msg() string {
	r.t.Helper()
	var env struct {
		Msg string `json:"msg"`
	}
	r.JSON(&env)
	return env.Msg
}

// AssertStatus asserts the response has the expected status code.
func (r *Response) AssertStatus(expected int) *Response {
	r.t.Helper()
	if r.StatusCode != expected {
		r.t.Errorf("expected status %d, got %d\nbody: %s", expected, r.StatusCode, string(r.Body))
	}
	return r
}

// AssertMsg asserts the envelope's msg field.
func (r *Response) AssertMsg(expected string) *Response {
	r.t.Helper()
	if got := r.Msg(); got != expected {
		r.t.Errorf("expected msg %q, got %q", expected, got)
	}
	return r
}

// AssertBodyContains asserts the response body contains substr.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !strings.Contains(string(r.Body), substr) {
		r.t.Errorf("expected body to contain %q, got: %s", substr, string(r.Body))
	}
	return r
}

// Login authenticates with the fixture credentials and keeps the token.
func (c *TwinClient) Login() *TwinClient {
	c.t.Helper()
	resp := c.Post("/api/User/Authentication", map[string]string{
		"username": Username,
		"password": Password,
	}).AssertStatus(http.StatusOK)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	resp.JSON(&body)
	if body.AccessToken == "" {
		c.t.Fatalf("login returned no accessToken: %s", resp.Body)
	}
	c.Token = body.AccessToken
	return c
}

// Get performs a GET request.
func (c *TwinClient) Get(path string) *Response {
	c.t.Helper()
	return c.do(http.MethodGet, path, nil, nil)
}

// Post performs a POST request with a JSON body.
func (c *TwinClient) Post(path string, body any) *Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, body, nil)
}

// Put performs a PUT request with a JSON body.
func (c *TwinClient) Put(path string, body any) *Response {
	c.t.Helper()
	return c.do(http.MethodPut, path, body, nil)
}

// Patch performs a PATCH request with a JSON body.
func (c *TwinClient) Patch(path string, body any) *Response {
	c.t.Helper()
	return c.do(http.MethodPatch, path, body, nil)
}

// Delete performs a DELETE request.
func (c *TwinClient) Delete(path string) *Response {
	c.t.Helper()
	return c.do(http.MethodDelete, path, nil, nil)
}

// DoRaw sends body bytes as-is, for malformed-JSON cases.
func (c *TwinClient) DoRaw(method, path, body string) *Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.BaseURL+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.doReq(req)
}

// DoWithHeaders performs a request with custom headers.
func (c *TwinClient) DoWithHeaders(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()
	return c.do(method, path, body, headers)
}

func (c *TwinClient) authorize(req *http.Request) {
	if c.Token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *TwinClient) do(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.authorize(req)
	return c.doReq(req)
}

func (c *TwinClient) doReq(req *http.Request) *Response {
	c.t.Helper()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
		t:          c.t,
	}
}

// AdminClient wraps the /admin/* control plane.
type AdminClient struct {
	*TwinClient
}

// NewAdminClient creates an admin client from a twin client.
func NewAdminClient(tc *TwinClient) *AdminClient {
	return &AdminClient{tc}
}

// Reset calls POST /admin/reset.
func (ac *AdminClient) Reset() *Response {
	ac.t.Helper()
	return ac.Post("/admin/reset", nil)
}

// GetState calls GET /admin/state.
func (ac *AdminClient) GetState() *Response {
	ac.t.Helper()
	return ac.Get("/admin/state")
}

// LoadState calls POST /admin/state.
func (ac *AdminClient) LoadState(state any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/state", state)
}

// InjectFault calls POST /admin/fault/{endpoint}.
func (ac *AdminClient) InjectFault(endpoint string, fault twincore.FaultConfig) *Response {
	ac.t.Helper()
	return ac.Post("/admin/fault/"+strings.TrimPrefix(endpoint, "/"), fault)
}

// RemoveFault calls DELETE /admin/fault/{endpoint}.
func (ac *AdminClient) RemoveFault(endpoint string) *Response {
	ac.t.Helper()
	return ac.Delete("/admin/fault/" + strings.TrimPrefix(endpoint, "/"))
}

// GetRequests calls GET /admin/requests.
func (ac *AdminClient) GetRequests() []twincore.RequestLogEntry {
	ac.t.Helper()
	var entries []twincore.RequestLogEntry
	ac.Get("/admin/requests").AssertStatus(http.StatusOK).JSON(&entries)
	return entries
}

// AdvanceTime calls POST /admin/time/advance.
func (ac *AdminClient) AdvanceTime(duration string) *Response {
	ac.t.Helper()
	return ac.Post("/admin/time/advance", map[string]string{"duration": duration})
}

// Health calls GET /admin/health.
func (ac *AdminClient) Health() *Response {
	ac.t.Helper()
	return ac.Get("/admin/health")
}
