// Package story assembles the story twin: the shared twin server, the
// story service API, and the admin control plane over one memory store.
package story

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/twin/admin"
	"github.com/storyspoiler/storycheck/internal/twin/story/api"
	"github.com/storyspoiler/storycheck/internal/twin/story/store"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

// Name identifies the twin in logs and metrics.
const Name = "twin-story"

// DefaultPort is used when neither --port nor $PORT is set.
const DefaultPort = 4300

// Options are the story-specific settings.
type Options struct {
	Username   string
	Password   string
	JWTSecret  string
	BcryptCost int // zero means bcrypt.DefaultCost
}

// Twin is a fully wired story twin.
type Twin struct {
	*twincore.Twin
	Store  *store.MemoryStore
	Tokens *api.TokenIssuer
}

// New builds a story twin and loads cfg.SeedFile when set.
func New(cfg *twincore.Config, opts Options, logger *zap.Logger) (*Twin, error) {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	base := twincore.New(cfg, logger)

	var storeOpts []store.Option
	if opts.BcryptCost > 0 {
		storeOpts = append(storeOpts, store.WithBcryptCost(opts.BcryptCost))
	}
	mem, err := store.New(opts.Username, opts.Password, storeOpts...)
	if err != nil {
		return nil, err
	}

	tokens, err := api.NewTokenIssuer(opts.JWTSecret, mem.Clock)
	if err != nil {
		return nil, err
	}

	api.NewHandler(mem, base.Middleware(), tokens, base.Logger).Routes(base.Router)

	adminHandler := admin.NewHandler(mem, base.Middleware(), mem.Clock)
	adminHandler.SetConfigProvider(base)
	adminHandler.SetMetrics(base.Metrics().Handler())
	adminHandler.Routes(base.Router)

	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		if err := mem.LoadState(data); err != nil {
			return nil, fmt.Errorf("loading seed data: %w", err)
		}
		base.Logger.Info("loaded seed data", zap.String("file", cfg.SeedFile))
	}

	return &Twin{Twin: base, Store: mem, Tokens: tokens}, nil
}
