// Package scenario runs declarative JSON scenarios against the story
// service: ordered requests with variable capture, templated paths and
// bodies, and JSONPath assertions on the responses.
package scenario

// Scenario is a complete scenario loaded from a JSON file.
type Scenario struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Setup       *Setup            `json:"setup,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Steps       []Step            `json:"steps"`
}

// Setup prepares a story twin before the steps run. It uses the twin's
// /admin plane and fails against the real service.
type Setup struct {
	Reset     bool   `json:"reset,omitempty"`
	StateFile string `json:"state_file,omitempty"` // relative to the scenario file
}

// Step is one request with its captures and assertions.
type Step struct {
	Name    string            `json:"name"`
	Request Request           `json:"request"`
	Capture map[string]string `json:"capture,omitempty"` // variable -> $.path
	Assert  *Assert           `json:"assert,omitempty"`
}

// Request is the call made by a step. Path is resolved against the
// client's base URL.
type Request struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// Assert is what a step expects of the response.
type Assert struct {
	Status       int               `json:"status,omitempty"`
	BodyContains string            `json:"body_contains,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         map[string]any    `json:"body,omitempty"`
}
