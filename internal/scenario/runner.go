package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/config"
	"github.com/storyspoiler/storycheck/internal/storyapi"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Executor sends one request. *storyapi.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, req storyapi.Request) (*storyapi.Response, error)
}

// Params exposes harness settings to {{config.*}} templates.
func Params(cfg *config.Config) map[string]string {
	return map[string]string{
		"base_url":         cfg.BaseURL,
		"username":         cfg.Username,
		"missing_story_id": cfg.MissingStoryID,
	}
}

// Runner executes scenarios through an authenticated client.
type Runner struct {
	client Executor
	params map[string]string
	logger *zap.Logger
	vars   map[string]string
}

// NewRunner creates a Runner. params back {{config.*}} templates.
func NewRunner(client Executor, params map[string]string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client: client,
		params: params,
		logger: logger.Named("scenario"),
	}
}

// Run executes s. A setup failure is returned as the error; step failures
// are recorded and later steps still run.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{ScenarioName: s.Name, Passed: true}

	r.vars = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		r.vars[k] = v
	}

	if s.Setup != nil {
		if err := r.runSetup(ctx, s.Setup); err != nil {
			return nil, fmt.Errorf("setup failed: %w", err)
		}
	}

	for i := range s.Steps {
		if err := ctx.Err(); err != nil {
			result.Passed = false
			result.Duration = time.Since(start)
			return result, err
		}
		sr := r.runStep(ctx, &s.Steps[i])
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
			r.logger.Warn("step failed", zap.String("scenario", s.Name), zap.String("step", sr.Name), zap.String("error", sr.Error))
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Vars returns the variables captured by the last run.
func (r *Runner) Vars() map[string]string {
	out := make(map[string]string, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}

func (r *Runner) runSetup(ctx context.Context, setup *Setup) error {
	if setup.Reset {
		if err := r.admin(ctx, "/admin/reset", nil); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if setup.StateFile != "" {
		data, err := os.ReadFile(setup.StateFile)
		if err != nil {
			return fmt.Errorf("state: %w", err)
		}
		if err := r.admin(ctx, "/admin/state", data); err != nil {
			return fmt.Errorf("state: %w", err)
		}
	}
	return nil
}

func (r *Runner) admin(ctx context.Context, path string, body []byte) error {
	req := storyapi.Request{Method: http.MethodPost, Path: path}
	if body != nil {
		req.Body = body
	}
	resp, err := r.client.Execute(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step *Step) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	fail := func(format string, args ...any) StepResult {
		sr.Error = fmt.Sprintf(format, args...)
		sr.Duration = time.Since(start)
		return sr
	}

	path, err := Expand(step.Request.Path, r.vars, r.params)
	if err != nil {
		return fail("path: %v", err)
	}

	req := storyapi.Request{Method: strings.ToUpper(step.Request.Method), Path: path}

	if len(step.Request.Headers) > 0 {
		req.Headers = make(map[string]string, len(step.Request.Headers))
		for k, v := range step.Request.Headers {
			expanded, err := Expand(v, r.vars, r.params)
			if err != nil {
				return fail("header %q: %v", k, err)
			}
			req.Headers[k] = expanded
		}
	}

	if step.Request.Body != nil {
		body, err := r.buildBody(step.Request.Body)
		if err != nil {
			return fail("body: %v", err)
		}
		req.Body = body
	}

	resp, err := r.client.Execute(ctx, req)
	if err != nil {
		return fail("request failed: %v", err)
	}

	for name, expr := range step.Capture {
		v, err := Extract(resp.Body, expr)
		if err != nil {
			return fail("capture %q: %v", name, err)
		}
		r.vars[name] = fmt.Sprint(v)
	}

	if step.Assert != nil {
		if err := r.check(step.Assert, resp); err != nil {
			return fail("%v", err)
		}
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}

// buildBody renders the body to JSON, then expands templates in the text.
func (r *Runner) buildBody(body any) ([]byte, error) {
	raw, ok := body.(string)
	if !ok {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		raw = string(data)
	}
	expanded, err := Expand(raw, r.vars, r.params)
	if err != nil {
		return nil, err
	}
	return []byte(expanded), nil
}

func (r *Runner) check(a *Assert, resp *storyapi.Response) error {
	if a.Status != 0 && resp.StatusCode != a.Status {
		return fmt.Errorf("expected status %d, got %d", a.Status, resp.StatusCode)
	}

	if a.BodyContains != "" {
		want, err := Expand(a.BodyContains, r.vars, r.params)
		if err != nil {
			return fmt.Errorf("body_contains: %v", err)
		}
		if !strings.Contains(string(resp.Body), want) {
			return fmt.Errorf("body does not contain %q", want)
		}
	}

	for key, want := range a.Headers {
		if got := resp.Header.Get(key); got != want {
			return fmt.Errorf("header %q: expected %q, got %q", key, want, got)
		}
	}

	if len(a.Body) == 0 {
		return nil
	}
	expanded := make(map[string]any, len(a.Body))
	for path, want := range a.Body {
		if s, ok := want.(string); ok {
			v, err := Expand(s, r.vars, r.params)
			if err != nil {
				return fmt.Errorf("assertion %q: %v", path, err)
			}
			want = v
		}
		expanded[path] = want
	}
	return CheckBody(resp.Body, expanded)
}
