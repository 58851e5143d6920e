// Package client talks to a story twin's /admin/* control plane.
package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Timeout bounds every admin call.
const Timeout = 5 * time.Second

// Resources that Inspect can read.
var Resources = map[string]string{
	"state":    "/admin/state",
	"requests": "/admin/requests",
	"faults":   "/admin/faults",
	"time":     "/admin/time",
	"config":   "/admin/config",
}

// AdminClient talks to twin /admin/* endpoints.
type AdminClient struct {
	http *resty.Client
}

// New creates an AdminClient for the twin at baseURL.
func New(baseURL string) *AdminClient {
	return &AdminClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(Timeout),
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health() (bool, string) {
	resp, err := c.http.R().Get("/admin/health")
	if err != nil {
		return false, err.Error()
	}
	body := strings.TrimSpace(resp.String())
	if resp.StatusCode() == 200 {
		return true, body
	}
	return false, fmt.Sprintf("status %d: %s", resp.StatusCode(), body)
}

// Reset calls POST /admin/reset.
func (c *AdminClient) Reset() (string, error) {
	return c.post("/admin/reset", nil, "reset")
}

// Seed POSTs the contents of a JSON file to /admin/state.
func (c *AdminClient) Seed(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("seed file %s is not valid JSON", filePath)
	}
	return c.post("/admin/state", data, "seed")
}

// Inspect returns the raw JSON of one admin resource, indented.
func (c *AdminClient) Inspect(resource string) (string, error) {
	path, ok := Resources[resource]
	if !ok {
		return "", fmt.Errorf("unknown resource %q (expected state, requests, faults, time or config)", resource)
	}
	resp, err := c.http.R().Get(path)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return prettyJSON(resp.Body()), nil
}

// UpdateConfig applies runtime config changes with PATCH /admin/config and
// returns the resulting config.
func (c *AdminClient) UpdateConfig(updates map[string]any) (string, error) {
	resp, err := c.http.R().SetHeader("Content-Type", "application/json").SetBody(updates).Patch("/admin/config")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("config update returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return prettyJSON(resp.Body()), nil
}

// Fault is the body of POST /admin/fault/{endpoint}.
type Fault struct {
	StatusCode int     `json:"status_code"`
	Body       string  `json:"body,omitempty"`
	DelayMS    int     `json:"delay_ms,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
}

// InjectFault registers a fault for endpoint, e.g. /api/Story/Create.
func (c *AdminClient) InjectFault(endpoint string, f Fault) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return c.post(faultPath(endpoint), data, "fault")
}

// RemoveFault clears the fault registered for endpoint.
func (c *AdminClient) RemoveFault(endpoint string) (string, error) {
	resp, err := c.http.R().Delete(faultPath(endpoint))
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("fault removal returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return strings.TrimSpace(resp.String()), nil
}

func faultPath(endpoint string) string {
	return "/admin/fault/" + strings.TrimPrefix(endpoint, "/")
}

func (c *AdminClient) post(path string, body []byte, op string) (string, error) {
	req := c.http.R().SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return strings.TrimSpace(resp.String()), nil
}

// prettyJSON re-indents raw; anything that is not JSON is returned as is.
func prettyJSON(raw []byte) string {
	var parsed json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	indented, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(indented)
}
