package suite

import (
	"context"
	"fmt"
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
	Err      error
	Error    string // empty when passed
}

// Result records the outcome of a whole run.
type Result struct {
	BaseURL  string
	Passed   bool
	Steps    []StepResult
	Story    StoryRef // last value threaded through the plan
	Duration time.Duration
}

// Failed returns the number of failed steps.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed {
			n++
		}
	}
	return n
}

// Runner executes the plan against one story service.
type Runner struct {
	cfg    *config.Config
	plan   []Step
	logger *zap.Logger
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		plan:   Plan(cfg.MissingStoryID, cfg.VerifyDeletion),
		logger: logger.Named("suite"),
	}
}

// Steps returns the plan in execution order.
func (r *Runner) Steps() []Step {
	return r.plan
}

// Run logs in, then executes every step in order. A login failure aborts
// the run before any step and is returned as the error. Step failures are
// recorded in the Result and do not stop later steps.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	client, err := storyapi.Connect(ctx, r.cfg.BaseURL, storyapi.Credentials{
		Username: r.cfg.Username,
		Password: r.cfg.Password,
	}, r.logger)
	if err != nil {
		r.logger.Error("setup failed", zap.Error(err))
		return nil, fmt.Errorf("setup: %w", err)
	}
	defer client.Close()

	api := storyapi.NewStories(client)
	result := &Result{BaseURL: r.cfg.BaseURL, Passed: true}

	var ref StoryRef
	for _, step := range r.plan {
		if err := ctx.Err(); err != nil {
			result.Passed = false
			result.Duration = time.Since(start)
			return result, err
		}

		stepStart := time.Now()
		next, err := step.Run(ctx, api, ref)
		ref = next

		sr := StepResult{Name: step.Name, Passed: err == nil, Duration: time.Since(stepStart), Err: err}
		if err != nil {
			sr.Error = err.Error()
			result.Passed = false
			r.logger.Warn("step failed", zap.String("step", step.Name), zap.Error(err))
		} else {
			r.logger.Info("step passed", zap.String("step", step.Name), zap.Duration("duration", sr.Duration))
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Story = ref
	result.Duration = time.Since(start)
	return result, nil
}
