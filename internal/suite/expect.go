package suite

import (
	"fmt"

	"github.com/storyspoiler/storycheck/internal/storyapi"
)

// AssertionError reports a response that did not match what a step expects.
type AssertionError struct {
	Step     string
	Field    string
	Expected any
	Actual   any
	Body     string // raw response body, truncated
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("%s: %s: expected %v, got %v", e.Step, e.Field, e.Expected, e.Actual)
	if e.Body != "" {
		msg += "\nbody: " + e.Body
	}
	return msg
}

const maxBody = 512

func bodySnippet(b []byte) string {
	if len(b) > maxBody {
		return string(b[:maxBody]) + "..."
	}
	return string(b)
}

func expectStatus(step string, resp *storyapi.Response, want int) error {
	if resp.StatusCode != want {
		return &AssertionError{Step: step, Field: "status", Expected: want, Actual: resp.StatusCode, Body: bodySnippet(resp.Body)}
	}
	return nil
}

// expectMessage decodes the envelope and compares its message exactly.
func expectMessage(step string, resp *storyapi.Response, want string) (storyapi.Outcome, error) {
	out, err := resp.Outcome()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if out.Message() != want {
		return out, &AssertionError{Step: step, Field: "msg", Expected: fmt.Sprintf("%q", want), Actual: fmt.Sprintf("%q", out.Message())}
	}
	return out, nil
}

func expectNonEmpty(step string, resp *storyapi.Response) error {
	stories, err := resp.Stories()
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if len(stories) == 0 {
		return &AssertionError{Step: step, Field: "stories", Expected: "non-empty list", Actual: "empty list"}
	}
	return nil
}
