package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/client"
	"github.com/storyspoiler/storycheck/internal/scenario"
	"github.com/storyspoiler/storycheck/internal/storyapi"
	"github.com/storyspoiler/storycheck/internal/suite"
)

// DefaultScenarioPath is used by storycheck_scenario when no path is given.
const DefaultScenarioPath = "./scenarios/"

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	r := textResult("Error: " + fmt.Sprintf(format, args...))
	r.IsError = true
	return r
}

// boolPtr returns a pointer to b. Used for optional bool fields in ToolAnnotations.
func boolPtr(b bool) *bool { return &b }

// RunInput is the input type for storycheck_run.
type RunInput struct {
	VerifyDeletion bool `json:"verify_deletion,omitempty" jsonschema:"Also check that the deleted story cannot be deleted again."`
}

func registerRun(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "storycheck_run",
		Description: "Log in and run the story suite (create, edit, list, delete and the error paths) against the configured base_url. Returns the PASS/FAIL report.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Run the story suite",
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(true),
		},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input RunInput) (*mcp.CallToolResult, any, error) {
		cfg := *s.cfg
		if input.VerifyDeletion {
			cfg.VerifyDeletion = true
		}
		if err := cfg.Validate(); err != nil {
			return errorResult("config: %v", err), nil, nil
		}

		s.logger.Debug("tool call", zap.String("tool", "storycheck_run"))
		result, err := suite.NewRunner(&cfg, s.logger).Run(ctx)
		if err != nil {
			return errorResult("%v", err), nil, nil
		}

		var out strings.Builder
		suite.WriteReport(&out, result)
		r := textResult(out.String())
		r.IsError = !result.Passed
		return r, nil, nil
	})
}

// ScenarioInput is the input type for storycheck_scenario.
type ScenarioInput struct {
	Path string `json:"path,omitempty" jsonschema:"Scenario file or directory. Defaults to ./scenarios/."`
}

func registerScenario(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "storycheck_scenario",
		Description: "Run JSON scenarios from a file or directory against the configured base_url.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Run JSON scenarios",
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(true),
		},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ScenarioInput) (*mcp.CallToolResult, any, error) {
		path := input.Path
		if path == "" {
			path = DefaultScenarioPath
		}
		if err := s.cfg.Validate(); err != nil {
			return errorResult("config: %v", err), nil, nil
		}

		scenarios, err := scenario.LoadPath(path)
		if err != nil {
			return errorResult("%v", err), nil, nil
		}

		s.logger.Debug("tool call", zap.String("tool", "storycheck_scenario"), zap.String("path", path))
		c, err := storyapi.Connect(ctx, s.cfg.BaseURL, storyapi.Credentials{
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		}, s.logger)
		if err != nil {
			return errorResult("%v", err), nil, nil
		}
		defer c.Close()

		var out strings.Builder
		totals := scenario.RunAll(ctx, scenario.NewRunner(c, scenario.Params(s.cfg), s.logger), scenarios, &out)
		r := textResult(out.String())
		r.IsError = totals.Failed > 0
		return r, nil, nil
	})
}

// StatusInput is the input type for twin_status (no parameters).
type StatusInput struct{}

func registerStatus(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "twin_status",
		Description: "Health check the story twin at base_url.",
		Annotations: &mcp.ToolAnnotations{
			Title:          "Twin health",
			ReadOnlyHint:   true,
			IdempotentHint: true,
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, any, error) {
		ok, detail := s.admin.Health()
		if !ok {
			return errorResult("%s unhealthy: %s", s.cfg.BaseURL, detail), nil, nil
		}
		return textResult(fmt.Sprintf("%s healthy: %s", s.cfg.BaseURL, detail)), nil, nil
	})
}

// ResetInput is the input type for twin_reset (no parameters).
type ResetInput struct{}

func registerReset(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "twin_reset",
		Description: "Reset the story twin: clears stories, faults and the request log, restores the seeded account and rewinds the clock.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Reset twin",
			DestructiveHint: boolPtr(true),
			IdempotentHint:  true,
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ ResetInput) (*mcp.CallToolResult, any, error) {
		resp, err := s.admin.Reset()
		if err != nil {
			return errorResult("resetting %s: %v", s.cfg.BaseURL, err), nil, nil
		}
		return textResult("Reset " + s.cfg.BaseURL + ": " + resp), nil, nil
	})
}

// SeedInput is the input type for twin_seed.
type SeedInput struct {
	File string `json:"file" jsonschema:"Path to the JSON seed file."`
}

func registerSeed(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "twin_seed",
		Description: "Seed the story twin by POSTing a JSON file to its /admin/state endpoint.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Seed twin state",
			DestructiveHint: boolPtr(true),
			IdempotentHint:  true,
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest, input SeedInput) (*mcp.CallToolResult, any, error) {
		if input.File == "" {
			return errorResult("'file' argument is required"), nil, nil
		}
		resp, err := s.admin.Seed(input.File)
		if err != nil {
			return errorResult("seeding %s: %v", s.cfg.BaseURL, err), nil, nil
		}
		return textResult(fmt.Sprintf("Seeded %s: %s", s.cfg.BaseURL, resp)), nil, nil
	})
}

// InspectInput is the input type for twin_inspect.
type InspectInput struct {
	Resource string `json:"resource,omitempty" jsonschema:"One of state, requests, faults, time or config. Defaults to state."`
}

func registerInspect(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "twin_inspect",
		Description: "Read one of the twin's admin resources: state, requests, faults, time or config.",
		Annotations: &mcp.ToolAnnotations{
			Title:          "Inspect twin",
			ReadOnlyHint:   true,
			IdempotentHint: true,
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest, input InspectInput) (*mcp.CallToolResult, any, error) {
		resource := input.Resource
		if resource == "" {
			resource = "state"
		}
		out, err := s.admin.Inspect(resource)
		if err != nil {
			return errorResult("inspecting %s: %v", resource, err), nil, nil
		}
		return textResult(out), nil, nil
	})
}

// ConfigInput is the input type for twin_config.
type ConfigInput struct {
	Updates map[string]any `json:"updates,omitempty" jsonschema:"Settings to change (latency, fail_rate, verbose). Omit to read the current config."`
}

func registerConfig(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "twin_config",
		Description: "Get or update the twin's runtime configuration. Without 'updates', returns current config. With 'updates' (latency, fail_rate, verbose), applies them.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Twin config",
			DestructiveHint: boolPtr(false),
			IdempotentHint:  true,
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest, input ConfigInput) (*mcp.CallToolResult, any, error) {
		if len(input.Updates) == 0 {
			out, err := s.admin.Inspect("config")
			if err != nil {
				return errorResult("fetching config: %v", err), nil, nil
			}
			return textResult(out), nil, nil
		}
		out, err := s.admin.UpdateConfig(input.Updates)
		if err != nil {
			return errorResult("updating config: %v", err), nil, nil
		}
		return textResult(out), nil, nil
	})
}

// FaultInput is the input type for twin_fault.
type FaultInput struct {
	Endpoint   string  `json:"endpoint"              jsonschema:"Path prefix to fault, e.g. /api/Story/Create."`
	StatusCode int     `json:"status_code,omitempty" jsonschema:"Status code to return instead of the real response."`
	Body       string  `json:"body,omitempty"        jsonschema:"Response body for the fault. Defaults to a JSON error."`
	DelayMS    int     `json:"delay_ms,omitempty"    jsonschema:"Delay before responding, in milliseconds."`
	Rate       float64 `json:"rate,omitempty"        jsonschema:"Fraction of matching requests to fault, 0 to 1. Zero means always."`
	Remove     bool    `json:"remove,omitempty"      jsonschema:"Remove the fault on endpoint instead of injecting one."`
}

func registerFault(s *Server) {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "twin_fault",
		Description: "Inject or remove a fault on a twin endpoint such as /api/Story/Create. The fault covers the path and every path below it.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Twin fault injection",
			DestructiveHint: boolPtr(false),
			IdempotentHint:  true,
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest, input FaultInput) (*mcp.CallToolResult, any, error) {
		if input.Endpoint == "" {
			return errorResult("'endpoint' argument is required"), nil, nil
		}

		if input.Remove {
			resp, err := s.admin.RemoveFault(input.Endpoint)
			if err != nil {
				return errorResult("removing fault on %s: %v", input.Endpoint, err), nil, nil
			}
			return textResult(resp), nil, nil
		}

		if input.StatusCode == 0 && input.DelayMS == 0 {
			return errorResult("a fault needs 'status_code' or 'delay_ms'"), nil, nil
		}
		resp, err := s.admin.InjectFault(input.Endpoint, client.Fault{
			StatusCode: input.StatusCode,
			Body:       input.Body,
			DelayMS:    input.DelayMS,
			Rate:       input.Rate,
		})
		if err != nil {
			return errorResult("injecting fault on %s: %v", input.Endpoint, err), nil, nil
		}
		return textResult(resp), nil, nil
	})
}
