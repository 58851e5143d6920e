package story

import (
	"context"
	"flag"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/config"
	"github.com/storyspoiler/storycheck/internal/logging"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

// Main parses twin-story command-line args, builds the twin and serves
// until ctx is cancelled.
func Main(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet(Name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &twincore.Config{Name: Name}
	twincore.RegisterFlags(fs, cfg)

	var opts Options
	fs.StringVar(&opts.Username, "user", config.DefaultUsername, "Seeded account username")
	fs.StringVar(&opts.Password, "password", config.DefaultPassword, "Seeded account password")
	fs.StringVar(&opts.JWTSecret, "jwt-secret", "", "HMAC secret for access tokens (default: random per process)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = uuid.NewString()
	}

	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Encoding: "console", OutputPath: "stderr"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	tw, err := New(cfg, opts, logger)
	if err != nil {
		return err
	}

	tw.Logger.Info("twin-story ready", zap.Int("port", cfg.Port))
	return tw.Serve(ctx)
}
