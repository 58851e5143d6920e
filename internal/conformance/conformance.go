// Package conformance starts a story twin binary and checks that it
// honours the admin control plane and passes the story suite end to end.
package conformance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/config"
	"github.com/storyspoiler/storycheck/internal/suite"
)

// Timeouts for process startup and shutdown.
const (
	StartTimeout    = 5 * time.Second
	ShutdownTimeout = 5 * time.Second
)

// Options configures a conformance run.
type Options struct {
	Binary   string
	Port     int
	Username string // seeded into the twin with --user
	Password string // seeded into the twin with --password
	Logger   *zap.Logger
}

// Result represents the outcome of a single conformance check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Report holds the results of a full conformance run.
type Report struct {
	Binary  string
	Port    int
	Results []Result
	Passed  int
	Failed  int
}

// Run starts the binary, runs every check against it and stops it. The
// error is set only when the binary cannot be started at all.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Username == "" {
		opts.Username = config.DefaultUsername
	}
	if opts.Password == "" {
		opts.Password = config.DefaultPassword
	}
	logger := opts.Logger.Named("conformance")

	if _, err := os.Stat(opts.Binary); err != nil {
		return nil, fmt.Errorf("binary not found: %s", opts.Binary)
	}

	cmd := exec.Command(opts.Binary,
		"--port", strconv.Itoa(opts.Port),
		"--user", opts.Username,
		"--password", opts.Password,
	)
	setConformanceProcessAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting twin: %w", err)
	}
	logger.Info("twin started", zap.String("binary", opts.Binary), zap.Int("pid", cmd.Process.Pid), zap.Int("port", opts.Port))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	report := &Report{Binary: opts.Binary, Port: opts.Port}
	baseURL := fmt.Sprintf("http://localhost:%d", opts.Port)
	c := &checker{
		baseURL: baseURL,
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(StartTimeout),
	}

	report.addResult(c.checkHealth(ctx))

	// The remaining checks need a live twin.
	if report.Results[0].Passed {
		report.addResult(c.checkReset(ctx))
		report.addResult(c.checkStateLoad(ctx))
		report.addResult(c.checkResetClearsState(ctx))
		report.addResult(c.checkFaultInjection(ctx))
		report.addResult(c.checkTimeAdvance(ctx))
		report.addResult(checkStorySuite(ctx, baseURL, opts, logger))
	}

	report.addResult(checkCleanShutdown(cmd, done))

	for _, r := range report.Results {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
			logger.Warn("check failed", zap.String("check", r.Name), zap.String("detail", r.Detail))
		}
	}
	return report, nil
}

func (r *Report) addResult(res Result) {
	r.Results = append(r.Results, res)
}

func pass(name, detail string) Result { return Result{Name: name, Passed: true, Detail: detail} }

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf(format, args...)}
}

type checker struct {
	baseURL string
	http    *resty.Client
}

func (c *checker) checkHealth(ctx context.Context) Result {
	name := "Twin starts and responds to health check within 5s"
	deadline := time.Now().Add(StartTimeout)

	for time.Now().Before(deadline) {
		resp, err := c.http.R().SetContext(ctx).Get("/admin/health")
		if err == nil && resp.StatusCode() == http.StatusOK {
			return pass(name, "GET /admin/health returned 200")
		}
		if ctx.Err() != nil {
			return fail(name, "cancelled: %v", ctx.Err())
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fail(name, "GET /admin/health did not return 200 within 5s")
}

func (c *checker) checkReset(ctx context.Context) Result {
	name := "POST /admin/reset returns 200"
	if err := c.expect(ctx, http.MethodPost, "/admin/reset", nil, http.StatusOK); err != nil {
		return fail(name, "%v", err)
	}
	return pass(name, "POST /admin/reset returned 200")
}

// conformanceStoryID is the story id the state checks seed and look for.
const conformanceStoryID = "conformance-story"

func (c *checker) checkStateLoad(ctx context.Context) Result {
	name := "POST /admin/state seeds stories visible in GET /admin/state"

	seed := map[string]any{
		"stories": map[string]any{
			conformanceStoryID: map[string]string{
				"title":       "Conformance",
				"description": "seeded by the conformance run",
			},
		},
	}
	if err := c.expect(ctx, http.MethodPost, "/admin/state", seed, http.StatusOK); err != nil {
		return fail(name, "%v", err)
	}

	stories, err := c.stateStories(ctx)
	if err != nil {
		return fail(name, "%v", err)
	}
	if _, ok := stories[conformanceStoryID]; !ok {
		return fail(name, "seeded story %q missing from state", conformanceStoryID)
	}
	return pass(name, "seeded story round-tripped through /admin/state")
}

func (c *checker) checkResetClearsState(ctx context.Context) Result {
	name := "POST /admin/reset clears stories"
	if err := c.expect(ctx, http.MethodPost, "/admin/reset", nil, http.StatusOK); err != nil {
		return fail(name, "%v", err)
	}
	stories, err := c.stateStories(ctx)
	if err != nil {
		return fail(name, "%v", err)
	}
	if len(stories) != 0 {
		return fail(name, "expected no stories after reset, found %d", len(stories))
	}
	return pass(name, "state is empty after reset")
}

func (c *checker) checkFaultInjection(ctx context.Context) Result {
	name := "POST /admin/fault/{endpoint} injects faults"

	fault := map[string]any{"status_code": http.StatusServiceUnavailable}
	if err := c.expect(ctx, http.MethodPost, "/admin/fault/api/Story/All", fault, http.StatusOK); err != nil {
		return fail(name, "inject: %v", err)
	}
	if err := c.expect(ctx, http.MethodGet, "/api/Story/All", nil, http.StatusServiceUnavailable); err != nil {
		return fail(name, "faulted endpoint: %v", err)
	}
	if err := c.expect(ctx, http.MethodDelete, "/admin/fault/api/Story/All", nil, http.StatusOK); err != nil {
		return fail(name, "remove: %v", err)
	}
	// Without a token the list call is rejected by auth, not the fault.
	if err := c.expect(ctx, http.MethodGet, "/api/Story/All", nil, http.StatusUnauthorized); err != nil {
		return fail(name, "after removal: %v", err)
	}
	return pass(name, "fault applied to /api/Story/All and removed")
}

func (c *checker) checkTimeAdvance(ctx context.Context) Result {
	name := "POST /admin/time/advance advances simulated clock"
	if err := c.expect(ctx, http.MethodPost, "/admin/time/advance", map[string]string{"duration": "1h"}, http.StatusOK); err != nil {
		return fail(name, "%v", err)
	}
	// Leave the clock where the story suite expects it.
	if err := c.expect(ctx, http.MethodPost, "/admin/reset", nil, http.StatusOK); err != nil {
		return fail(name, "reset after advance: %v", err)
	}
	return pass(name, "POST /admin/time/advance returned 200")
}

func checkStorySuite(ctx context.Context, baseURL string, opts Options, logger *zap.Logger) Result {
	name := "Story suite passes against the twin"

	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.Username = opts.Username
	cfg.Password = opts.Password
	cfg.VerifyDeletion = true

	result, err := suite.NewRunner(cfg, logger).Run(ctx)
	if err != nil {
		return fail(name, "%v", err)
	}
	if !result.Passed {
		for _, st := range result.Steps {
			if !st.Passed {
				return fail(name, "%d of %d steps failed; first: %s: %s", result.Failed(), len(result.Steps), st.Name, st.Error)
			}
		}
	}
	return pass(name, fmt.Sprintf("%d steps passed", len(result.Steps)))
}

func checkCleanShutdown(cmd *exec.Cmd, done <-chan error) Result {
	name := "Twin shuts down cleanly on SIGTERM within 5s"

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fail(name, "failed to send SIGTERM: %v", err)
	}

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fail(name, "twin exited with status %d", exitErr.ExitCode())
		}
		if err != nil {
			return fail(name, "waiting for twin: %v", err)
		}
		return pass(name, "twin exited cleanly after SIGTERM")
	case <-time.After(ShutdownTimeout):
		cmd.Process.Kill()
		<-done
		return fail(name, "twin did not exit within 5s after SIGTERM")
	}
}

func (c *checker) expect(ctx context.Context, method, path string, body any, status int) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() != status {
		return fmt.Errorf("%s %s: expected %d, got %d", method, path, status, resp.StatusCode())
	}
	return nil
}

func (c *checker) stateStories(ctx context.Context) (map[string]json.RawMessage, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/admin/state")
	if err != nil {
		return nil, fmt.Errorf("GET /admin/state: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /admin/state: expected 200, got %d", resp.StatusCode())
	}
	var state struct {
		Stories map[string]json.RawMessage `json:"stories"`
	}
	if err := json.Unmarshal(resp.Body(), &state); err != nil {
		return nil, fmt.Errorf("state is not valid JSON: %w", err)
	}
	return state.Stories, nil
}

// WriteReport prints the checks as PASS/FAIL lines with a summary.
func WriteReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\nConformance: %s (port %d)\n\n", r.Binary, r.Port)
	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  %s  %s\n", status, res.Name)
		if res.Detail != "" {
			fmt.Fprintf(w, "        %s\n", res.Detail)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", r.Passed, r.Failed)
}
