// storycheck runs the story spoiler service suite and JSON scenarios
// against a live service or a local story twin.
//
// Usage:
//
//	storycheck run                      Run the story suite against base_url
//	storycheck scenario [path]          Run JSON scenarios (default: ./scenarios/)
//	storycheck conformance <binary>     Check a twin binary end to end
//	storycheck mcp                      Serve storycheck tools over MCP on stdio
//	storycheck twin up <binary>         Start a story twin in the background
//	storycheck twin down                Stop the background twin
//	storycheck twin status              Health check the twin at base_url
//	storycheck twin reset               Reset the twin's state
//	storycheck twin seed <file>         POST seed data to the twin
//	storycheck twin inspect [res]       Query the twin's internal state
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/client"
	"github.com/storyspoiler/storycheck/internal/config"
	"github.com/storyspoiler/storycheck/internal/conformance"
	"github.com/storyspoiler/storycheck/internal/logging"
	"github.com/storyspoiler/storycheck/internal/mcp"
	"github.com/storyspoiler/storycheck/internal/procmgr"
	"github.com/storyspoiler/storycheck/internal/scenario"
	"github.com/storyspoiler/storycheck/internal/storyapi"
	"github.com/storyspoiler/storycheck/internal/suite"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// defaultConformancePort is where conformance starts the twin under test.
const defaultConformancePort = 19876

// defaultTwinPort matches twin-story's own default.
const defaultTwinPort = 4300

// errFailed signals that checks ran and at least one failed.
var errFailed = errors.New("one or more checks failed")

type options struct {
	configPath     string
	verifyDeletion bool
}

func main() {
	cmd, args, opts := parseArgs(os.Args[1:])

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}
	if cmd == "version" || cmd == "--version" || cmd == "-v" {
		fmt.Printf("storycheck version %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := dispatch(ctx, cmd, args, opts)
	if errors.Is(err, errFailed) {
		stop()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "storycheck: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cmd string, args []string, opts options) error {
	switch cmd {
	case "run", "scenario", "conformance", "twin", "mcp":
	default:
		fmt.Fprintf(os.Stderr, "storycheck: unknown command %q\n\n", cmd)
		printUsage()
		return errFailed
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verifyDeletion {
		cfg.VerifyDeletion = true
	}

	// stdout carries the MCP protocol.
	if cmd == "mcp" && cfg.Log.OutputPath == "stdout" {
		cfg.Log.OutputPath = logging.DefaultOutput
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch cmd {
	case "run":
		return cmdRun(ctx, cfg, logger)
	case "scenario":
		return cmdScenario(ctx, cfg, logger, args)
	case "conformance":
		return cmdConformance(ctx, cfg, logger, args)
	case "mcp":
		return mcp.NewServer(cfg, logger, version).Run(ctx)
	default:
		return cmdTwin(cfg, args)
	}
}

// parseArgs extracts the subcommand, positional args and global flags.
func parseArgs(raw []string) (command string, args []string, opts options) {
	opts.configPath = config.DefaultFile
	if p := os.Getenv("STORYCHECK_CONFIG"); p != "" {
		opts.configPath = p
	}

	var filtered []string
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--config" && i+1 < len(raw):
			opts.configPath = raw[i+1]
			i++
		case raw[i] == "--verify-deletion":
			opts.verifyDeletion = true
		default:
			filtered = append(filtered, raw[i])
		}
	}

	if len(filtered) == 0 {
		return "", nil, opts
	}
	return filtered[0], filtered[1:], opts
}

func printUsage() {
	fmt.Printf(`storycheck %s: story spoiler service checks

Usage:
  storycheck [--config <path>] [--verify-deletion] <command> [arguments]

Commands:
  run                        Run the story suite against base_url
  scenario [path]            Run JSON scenarios (default: ./scenarios/)
  conformance <binary>       Check a twin binary (--port <p>, default %d)
  mcp                        Start MCP server over stdio (for AI agents)
  twin up <binary>           Start a twin in the background (--port <p>, --seed <file>)
  twin down                  Stop the background twin
  twin status                Health check the twin at base_url
  twin reset                 Reset the twin's state
  twin seed <file>           POST seed data to the twin
  twin inspect [res]         Query twin state (res: state|requests|faults|time|config)
  version                    Print the storycheck version

Options:
  --config <path>      Path to config (default: ./%s)
  --verify-deletion    Also check that a deleted story cannot be deleted again

Environment:
  STORYCHECK_CONFIG    Override default config path
  STORYCHECK_*         Override any config key, e.g. STORYCHECK_BASE_URL
`, version, defaultConformancePort, config.DefaultFile)
}

// ---------------------------------------------------------------------------
// storycheck run
// ---------------------------------------------------------------------------

func cmdRun(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	result, err := suite.NewRunner(cfg, logger).Run(ctx)
	if result != nil {
		suite.WriteReport(os.Stdout, result)
	}
	if err != nil {
		return err
	}
	if !result.Passed {
		return errFailed
	}
	return nil
}

// ---------------------------------------------------------------------------
// storycheck scenario [path]
// ---------------------------------------------------------------------------

func cmdScenario(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	path := "./scenarios/"
	if len(args) > 0 {
		path = args[0]
	}
	scenarios, err := scenario.LoadPath(path)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios found in %s", path)
	}

	c, err := storyapi.Connect(ctx, cfg.BaseURL, storyapi.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
	}, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	totals := scenario.RunAll(ctx, scenario.NewRunner(c, scenario.Params(cfg), logger), scenarios, os.Stdout)
	if totals.Failed > 0 {
		return errFailed
	}
	return nil
}

// ---------------------------------------------------------------------------
// storycheck conformance <binary> [--port <port>]
// ---------------------------------------------------------------------------

func cmdConformance(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: storycheck conformance <binary> [--port <port>]")
	}

	binaryPath := args[0]
	port := defaultConformancePort
	for i := 1; i < len(args); i++ {
		if args[i] == "--port" && i+1 < len(args) {
			p, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid port: %s", args[i+1])
			}
			port = p
			i++
		}
	}

	absPath, err := filepath.Abs(binaryPath)
	if err != nil {
		return fmt.Errorf("resolving binary path: %w", err)
	}

	fmt.Printf("Running conformance suite against %s on port %d...\n", binaryPath, port)

	report, err := conformance.Run(ctx, conformance.Options{
		Binary:   absPath,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	conformance.WriteReport(os.Stdout, report)

	if report.Failed > 0 {
		return errFailed
	}
	return nil
}

// ---------------------------------------------------------------------------
// storycheck twin <status|reset|seed|inspect>
// ---------------------------------------------------------------------------

func cmdTwin(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: storycheck twin <up|down|status|reset|seed|inspect> [arguments]")
	}
	ac := client.New(cfg.BaseURL)

	switch args[0] {
	case "up":
		return twinUp(cfg, args[1:])
	case "down":
		e, err := procmgr.New("").Stop()
		if err != nil {
			return err
		}
		if e == nil {
			fmt.Println("  no twin running")
			return nil
		}
		fmt.Printf("  stopped  pid %d (port %d)\n", e.PID, e.Port)
	case "status":
		ok, detail := ac.Health()
		status := "healthy"
		if !ok {
			status = "unhealthy"
		}
		fmt.Printf("  %-10s %s  %s\n", status, cfg.BaseURL, detail)
		if !ok {
			return errFailed
		}
	case "reset":
		if _, err := ac.Reset(); err != nil {
			return fmt.Errorf("resetting %s: %w", cfg.BaseURL, err)
		}
		fmt.Printf("  reset  %s\n", cfg.BaseURL)
	case "seed":
		if len(args) < 2 {
			return fmt.Errorf("usage: storycheck twin seed <file>")
		}
		if _, err := ac.Seed(args[1]); err != nil {
			return fmt.Errorf("seeding %s: %w", cfg.BaseURL, err)
		}
		fmt.Printf("  seeded %s from %s\n", cfg.BaseURL, args[1])
	case "inspect":
		resource := "state"
		if len(args) >= 2 {
			resource = args[1]
		}
		out, err := ac.Inspect(resource)
		if err != nil {
			return fmt.Errorf("inspecting %s: %w", resource, err)
		}
		fmt.Println(out)
	default:
		return fmt.Errorf("unknown twin command %q (expected up, down, status, reset, seed or inspect)", args[0])
	}
	return nil
}

func twinUp(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: storycheck twin up <binary> [--port <port>] [--seed <file>] [--verbose]")
	}

	spec := procmgr.Spec{
		Binary:   args[0],
		Port:     defaultTwinPort,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	for i := 1; i < len(args); i++ {
		switch {
		case args[i] == "--port" && i+1 < len(args):
			p, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid port: %s", args[i+1])
			}
			spec.Port = p
			i++
		case args[i] == "--seed" && i+1 < len(args):
			spec.SeedFile = args[i+1]
			i++
		case args[i] == "--verbose":
			spec.Verbose = true
		default:
			return fmt.Errorf("unknown argument %q", args[i])
		}
	}

	e, err := procmgr.New("").Start(spec)
	if err != nil {
		return err
	}

	baseURL := fmt.Sprintf("http://localhost:%d", e.Port)
	ac := client.New(baseURL)
	deadline := time.Now().Add(5 * time.Second)
	for {
		ok, detail := ac.Health()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("twin (pid %d) not healthy after 5s: %s; see %s", e.PID, detail, e.LogPath)
		}
		time.Sleep(200 * time.Millisecond)
	}

	fmt.Printf("  started  pid %d  %s  (logs: %s)\n", e.PID, baseURL, e.LogPath)
	fmt.Printf("  export STORYCHECK_BASE_URL=%s\n", baseURL)
	return nil
}
