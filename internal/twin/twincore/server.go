// Package twincore provides the HTTP server, CLI flags, middleware chain
// and response helpers of the story twin.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Config holds the common twin configuration, parsed from CLI flags.
type Config struct {
	Port     int
	Latency  time.Duration
	FailRate float64
	SeedFile string
	Verbose  bool
	Name     string
}

// RegisterFlags binds the common flags on fs. Twin-specific flags are
// registered by the caller on the same set before fs.Parse.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Port, "port", 0, "HTTP listen port (default: $PORT or auto-assigned)")
	fs.DurationVar(&cfg.Latency, "latency", 0, "Base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "Path to JSON fixture for initial state")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable request logging")
}

// Finalize applies environment fallbacks and checks ranges after parsing.
func (c *Config) Finalize() error {
	if c.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid PORT %q: %w", p, err)
			}
			c.Port = n
		}
	}
	if c.Latency < 0 {
		return errors.New("latency must not be negative")
	}
	if c.FailRate < 0 || c.FailRate > 1 {
		return errors.New("fail-rate must be between 0.0 and 1.0")
	}
	return nil
}

// Twin is the base server: a chi router with the common middleware stack
// and lifecycle management.
type Twin struct {
	Config  *Config
	Router  *chi.Mux
	Logger  *zap.Logger
	mw      *Middleware
	metrics *Metrics
	mu      sync.RWMutex // guards Config fields changed at runtime
}

// New creates a Twin. A nil logger is replaced with a no-op logger.
func New(cfg *Config, logger *zap.Logger) *Twin {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Twin{
		Config:  cfg,
		Router:  chi.NewRouter(),
		Logger:  logger.Named(cfg.Name),
		metrics: NewMetrics(cfg.Name),
	}
	t.mw = NewMiddleware(t, t.Logger, t.metrics)

	// Latency and failure middleware stay mounted and check the current
	// settings per request, so runtime updates take effect immediately.
	t.Router.Use(t.mw.RequestID)
	t.Router.Use(chimw.RealIP)
	t.Router.Use(t.mw.CORS)
	t.Router.Use(t.mw.RequestLog)
	t.Router.Use(t.mw.Metrics)
	t.Router.Use(t.mw.LatencyInjection)
	t.Router.Use(t.mw.RandomFailure)

	return t
}

// Middleware returns the middleware instance (fault registry, request log).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// Metrics returns the twin's metric collectors.
func (t *Twin) Metrics() *Metrics {
	return t.metrics
}

// Latency implements Settings.
func (t *Twin) Latency() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Config.Latency
}

// FailRate implements Settings.
func (t *Twin) FailRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Config.FailRate
}

// Verbose implements Settings.
func (t *Twin) Verbose() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Config.Verbose
}

// GetConfig returns the current runtime configuration as a map.
func (t *Twin) GetConfig() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]any{
		"name":      t.Config.Name,
		"port":      t.Config.Port,
		"latency":   t.Config.Latency.String(),
		"fail_rate": t.Config.FailRate,
		"verbose":   t.Config.Verbose,
	}
}

// UpdateConfig updates latency, fail_rate and verbose. Every key is
// validated before any is applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	var (
		latency  *time.Duration
		failRate *float64
		verbose  *bool
	)

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return errors.New("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return errors.New("latency must not be negative")
			}
			latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return errors.New("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return errors.New("fail_rate must be between 0.0 and 1.0")
			}
			failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return errors.New("verbose must be a boolean")
			}
			verbose = &b
		case "name", "port":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if latency != nil {
		t.Config.Latency = *latency
	}
	if failRate != nil {
		t.Config.FailRate = *failRate
	}
	if verbose != nil {
		t.Config.Verbose = *verbose
	}
	return nil
}

// Serve listens on the configured port and blocks until ctx is done, then
// shuts the server down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", t.Config.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	t.Logger.Info("shutting down twin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so a Twin can back an httptest.Server.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Message writes the service's {"msg": ...} envelope.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"msg": msg})
}

// Error writes an error envelope. The story service reports errors in the
// same msg field it uses for success.
func Error(w http.ResponseWriter, status int, message string) {
	Message(w, status, message)
}
