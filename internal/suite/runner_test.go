package suite

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyspoiler/storycheck/internal/config"
	"github.com/storyspoiler/storycheck/internal/storyapi"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
	"github.com/storyspoiler/storycheck/internal/twin/twintest"
)

func twinConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.Username = twintest.Username
	cfg.Password = twintest.Password
	return cfg
}

func stepNames(r *Result) []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func failedNames(r *Result) []string {
	var names []string
	for _, s := range r.Steps {
		if !s.Passed {
			names = append(names, s.Name)
		}
	}
	return names
}

func TestPlanOrder(t *testing.T) {
	names := func(steps []Step) []string {
		out := make([]string, 0, len(steps))
		for _, s := range steps {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Equal(t, []string{
		NameCreate, NameEdit, NameList, NameDelete,
		NameCreateInvalid, NameEditMissing, NameDeleteMissing,
	}, names(Plan("358", false)))

	withVerify := names(Plan("358", true))
	require.Len(t, withVerify, 8)
	assert.Equal(t, NameDeleteAlreadyGone, withVerify[7])
}

func TestRunAgainstTwinPasses(t *testing.T) {
	tw, srv := twintest.Start(t)

	result, err := NewRunner(twinConfig(srv.URL), nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Passed, "failed steps: %v", failedNames(result))
	assert.Len(t, result.Steps, 7)
	assert.Zero(t, result.Failed())
	assert.NotEmpty(t, result.Story)

	// the created story was deleted again
	assert.Zero(t, tw.Store.Stories.Count())
}

func TestRunWithVerifyDeletion(t *testing.T) {
	_, srv := twintest.Start(t)
	cfg := twinConfig(srv.URL)
	cfg.VerifyDeletion = true

	result, err := NewRunner(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Passed, "failed steps: %v", failedNames(result))
	require.Len(t, result.Steps, 8)
	assert.Equal(t, NameDeleteAlreadyGone, result.Steps[7].Name)
}

func TestRunThreadsStoryRef(t *testing.T) {
	tw, srv := twintest.Start(t)

	result, err := NewRunner(twinConfig(srv.URL), nil).Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Passed)

	ref := string(result.Story)
	var sawEdit, sawDelete bool
	for _, e := range tw.Middleware().ReqLog.Entries() {
		switch e.Path {
		case storyapi.EditPath + ref:
			sawEdit = true
		case storyapi.DeletePath + ref:
			sawDelete = true
		}
	}
	assert.True(t, sawEdit, "edit should target the created id")
	assert.True(t, sawDelete, "delete should target the created id")
}

func TestFailedCreateCascades(t *testing.T) {
	tw, srv := twintest.Start(t)
	tw.Middleware().Faults.Set(storyapi.CreatePath, twincore.FaultConfig{StatusCode: http.StatusServiceUnavailable})

	result, err := NewRunner(twinConfig(srv.URL), nil).Run(context.Background())
	require.NoError(t, err, "step failures are recorded, not returned")

	assert.False(t, result.Passed)
	assert.Empty(t, result.Story)
	assert.Len(t, result.Steps, 7, "every step still runs")

	// Edit and delete run with the empty ref; list finds nothing; the
	// invalid create hits the same fault.
	assert.Equal(t, []string{NameCreate, NameEdit, NameList, NameDelete, NameCreateInvalid}, failedNames(result))

	var ae *AssertionError
	require.True(t, errors.As(result.Steps[0].Err, &ae))
	assert.Equal(t, "status", ae.Field)
	assert.Equal(t, http.StatusCreated, ae.Expected)
	assert.Equal(t, http.StatusServiceUnavailable, ae.Actual)
}

func TestAuthFailureAbortsBeforeAnyStep(t *testing.T) {
	tw, srv := twintest.Start(t)
	cfg := twinConfig(srv.URL)
	cfg.Password = "wrong"

	result, err := NewRunner(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, storyapi.ErrAuth))

	var apiErr *storyapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	entries := tw.Middleware().ReqLog.Entries()
	require.Len(t, entries, 1, "only the login call reaches the service")
	assert.Equal(t, storyapi.AuthPath, entries[0].Path)
}

func TestUndecodableBodiesAreRecordedPerStep(t *testing.T) {
	tw, srv := twintest.Start(t)
	// Login works; every story call then fails with an unparseable body.
	tw.Middleware().Faults.Set("/api/Story", twincore.FaultConfig{StatusCode: http.StatusOK, Body: "<html>"})

	result, err := NewRunner(twinConfig(srv.URL), nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Passed)

	for _, s := range result.Steps {
		assert.False(t, s.Passed, s.Name)
		assert.NotEmpty(t, s.Error, s.Name)
	}
	// edit gets the expected status, then fails to decode
	assert.Equal(t, storyapi.KindDecode, storyapi.KindOf(result.Steps[1].Err))
}

func TestRunTwiceAfterResetIsIdentical(t *testing.T) {
	tw, srv := twintest.Start(t)
	runner := NewRunner(twinConfig(srv.URL), nil)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	tw.Store.Reset()
	second, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stepNames(first), stepNames(second))
	for i := range first.Steps {
		assert.Equal(t, first.Steps[i].Passed, second.Steps[i].Passed, first.Steps[i].Name)
	}
	assert.NotEqual(t, first.Story, second.Story, "each run creates a fresh story")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	_, srv := twintest.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(twinConfig(srv.URL), nil).Run(ctx)
	require.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	result := &Result{
		BaseURL: "http://twin",
		Steps: []StepResult{
			{Name: NameCreate, Passed: true},
			{Name: NameEdit, Passed: false, Error: "edit story: status: expected 200, got 404"},
		},
	}

	var buf bytes.Buffer
	WriteReport(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "--- story suite against http://twin ---")
	assert.Contains(t, out, "PASS  "+NameCreate)
	assert.Contains(t, out, "FAIL  "+NameEdit)
	assert.Contains(t, out, "expected 200, got 404")
	assert.Contains(t, out, "Results: 1 passed, 1 failed, 2 total")
	assert.Contains(t, out, "Suite: FAILED")
}
