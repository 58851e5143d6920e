package scenario_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyspoiler/storycheck/internal/config"
	"github.com/storyspoiler/storycheck/internal/scenario"
	"github.com/storyspoiler/storycheck/internal/storyapi"
	"github.com/storyspoiler/storycheck/internal/twin/story"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
	"github.com/storyspoiler/storycheck/internal/twin/twintest"
)

var params = map[string]string{"missing_story_id": "358"}

func connect(t *testing.T) (*story.Twin, *storyapi.Client, *twintest.AdminClient) {
	t.Helper()
	tw, srv := twintest.Start(t)
	client, err := storyapi.Connect(context.Background(), srv.URL, storyapi.Credentials{
		Username: twintest.Username,
		Password: twintest.Password,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return tw, client, twintest.NewAdminClient(twintest.NewTwinClient(t, srv))
}

func TestBundledStoryCRUDScenarioPasses(t *testing.T) {
	tw, client, _ := connect(t)

	s, err := scenario.Load(filepath.Join("..", "..", "scenarios", "story_crud.json"))
	require.NoError(t, err)

	r := scenario.NewRunner(client, params, nil)
	result, err := r.Run(context.Background(), s)
	require.NoError(t, err)

	for _, st := range result.Steps {
		assert.True(t, st.Passed, "step %q: %s", st.Name, st.Error)
	}
	assert.True(t, result.Passed)
	assert.Len(t, result.Steps, 7)
	assert.NotEmpty(t, r.Vars()["story_id"])
	assert.Zero(t, tw.Store.Stories.Count(), "the scenario deletes what it creates")
}

func TestRunCapturesAndExpands(t *testing.T) {
	tw, client, _ := connect(t)

	s := &scenario.Scenario{
		Name:      "capture",
		Variables: map[string]string{"title": "Captured"},
		Steps: []scenario.Step{
			{
				Name: "create",
				Request: scenario.Request{
					Method: "post",
					Path:   "/api/Story/Create",
					Body:   map[string]any{"title": "{{title}}", "description": "d", "url": ""},
				},
				Capture: map[string]string{"id": "$.storyId"},
				Assert:  &scenario.Assert{Status: http.StatusCreated},
			},
			{
				Name:    "list",
				Request: scenario.Request{Method: "GET", Path: "/api/Story/All"},
				Assert: &scenario.Assert{
					Status: http.StatusOK,
					Body: map[string]any{
						"$[0].id":    "{{id}}",
						"$[0].title": "{{title}}",
					},
				},
			},
		},
	}

	r := scenario.NewRunner(client, nil, nil)
	result, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Passed, "%+v", result.Steps)

	id := r.Vars()["id"]
	st, ok := tw.Store.Stories.Get(id)
	require.True(t, ok, "captured id %q should exist in the twin", id)
	assert.Equal(t, "Captured", st.Title)
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	_, client, _ := connect(t)

	s := &scenario.Scenario{
		Name: "failures",
		Steps: []scenario.Step{
			{
				Name:    "wrong status",
				Request: scenario.Request{Method: "GET", Path: "/api/Story/All"},
				Assert:  &scenario.Assert{Status: http.StatusTeapot},
			},
			{
				Name:    "capture from empty list",
				Request: scenario.Request{Method: "GET", Path: "/api/Story/All"},
				Capture: map[string]string{"id": "$[0].id"},
			},
			{
				Name:    "unresolved template",
				Request: scenario.Request{Method: "DELETE", Path: "/api/Story/Delete/{{id}}"},
			},
			{
				Name:    "still runs",
				Request: scenario.Request{Method: "GET", Path: "/api/Story/All"},
				Assert:  &scenario.Assert{Status: http.StatusOK, BodyContains: "["},
			},
		},
	}

	result, err := scenario.NewRunner(client, nil, nil).Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Steps, 4)
	assert.False(t, result.Passed)

	assert.Contains(t, result.Steps[0].Error, "expected status 418, got 200")
	assert.Contains(t, result.Steps[1].Error, `capture "id"`)
	assert.Contains(t, result.Steps[2].Error, "unresolved")
	assert.True(t, result.Steps[3].Passed, result.Steps[3].Error)
}

func TestRunSetupResetsAndLoadsState(t *testing.T) {
	tw, client, admin := connect(t)

	stateFile := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(stateFile, []byte(`{
  "stories": {"seeded-1": {"title": "Seeded", "description": "from state", "url": ""}}
}`), 0o644))

	admin.InjectFault("/api/Story/Delete", twincore.FaultConfig{StatusCode: http.StatusServiceUnavailable})

	s := &scenario.Scenario{
		Name:  "setup",
		Setup: &scenario.Setup{Reset: true, StateFile: stateFile},
		Steps: []scenario.Step{
			{
				Name:    "list seeded",
				Request: scenario.Request{Method: "GET", Path: "/api/Story/All"},
				Assert: &scenario.Assert{
					Status: http.StatusOK,
					Body:   map[string]any{"$[0].id": "seeded-1", "$": map[string]any{"len_gte": 1}},
				},
			},
			{
				Name:    "delete seeded",
				Request: scenario.Request{Method: "DELETE", Path: "/api/Story/Delete/seeded-1"},
				Assert:  &scenario.Assert{Status: http.StatusOK},
			},
		},
	}

	result, err := scenario.NewRunner(client, nil, nil).Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Passed, "%+v", result.Steps)
	assert.Zero(t, tw.Store.Stories.Count())
	assert.Empty(t, tw.Middleware().Faults.Patterns(), "reset clears faults")
}

func TestRunSetupFailureIsReturned(t *testing.T) {
	_, client, _ := connect(t)

	s := &scenario.Scenario{
		Name:  "bad setup",
		Setup: &scenario.Setup{StateFile: filepath.Join(t.TempDir(), "missing.json")},
		Steps: []scenario.Step{{Name: "never", Request: scenario.Request{Method: "GET", Path: "/"}}},
	}
	result, err := scenario.NewRunner(client, nil, nil).Run(context.Background(), s)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "setup failed")
}

func TestRunRawStringBodyAndHeaders(t *testing.T) {
	_, client, admin := connect(t)

	s := &scenario.Scenario{
		Name:      "raw",
		Variables: map[string]string{"trace": "abc"},
		Steps: []scenario.Step{{
			Name: "create with raw body",
			Request: scenario.Request{
				Method:  "POST",
				Path:    "/api/Story/Create",
				Headers: map[string]string{"X-Trace": "{{trace}}"},
				Body:    `{"title":"raw","description":"raw body","url":""}`,
			},
			Assert: &scenario.Assert{
				Status: http.StatusCreated,
				Body:   map[string]any{"$.msg": "Successfully created!"},
			},
		}},
	}

	result, err := scenario.NewRunner(client, nil, nil).Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Passed, "%+v", result.Steps)

	reqs := admin.GetRequests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "/api/Story/Create", reqs[len(reqs)-1].Path)
}

func TestWriteResult(t *testing.T) {
	s := &scenario.Scenario{Name: "Story CRUD", Description: "happy path"}
	result := &scenario.Result{
		ScenarioName: s.Name,
		Passed:       false,
		Steps: []scenario.StepResult{
			{Name: "create story", Passed: true},
			{Name: "edit story", Error: "expected status 200, got 404"},
		},
	}

	var buf bytes.Buffer
	scenario.WriteResult(&buf, s, result)
	out := buf.String()

	assert.Contains(t, out, "--- Story CRUD ---")
	assert.Contains(t, out, "happy path")
	assert.True(t, strings.Contains(out, "  PASS  create story"))
	assert.Contains(t, out, "  FAIL  edit story")
	assert.Contains(t, out, "expected status 200, got 404")
	assert.Contains(t, out, "Scenario: FAILED")
}

func TestRunAllCountsSteps(t *testing.T) {
	_, client, _ := connect(t)

	scenarios, err := scenario.LoadPath(filepath.Join("..", "..", "scenarios"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.MissingStoryID = "358"

	var buf bytes.Buffer
	totals := scenario.RunAll(context.Background(), scenario.NewRunner(client, scenario.Params(cfg), nil), scenarios, &buf)

	assert.Zero(t, totals.Failed, buf.String())
	assert.Positive(t, totals.Passed)
	assert.Contains(t, buf.String(), "Results: ")
}
