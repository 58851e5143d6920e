package twincore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// RequestLogEntry captures details of an incoming request for admin inspection.
type RequestLogEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"status_code"`
	Duration   time.Duration     `json:"duration_ns"`
	RequestID  string            `json:"request_id,omitempty"`
}

// RequestLog is a thread-safe ring buffer of recent requests.
type RequestLog struct {
	mu      sync.RWMutex
	entries []RequestLogEntry
	maxSize int
}

// NewRequestLog creates a request log holding at most maxSize entries.
func NewRequestLog(maxSize int) *RequestLog {
	return &RequestLog{
		entries: make([]RequestLogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest if at capacity.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) >= rl.maxSize {
		rl.entries = rl.entries[1:]
	}
	rl.entries = append(rl.entries, entry)
}

// Entries returns a copy of all log entries, oldest first.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, len(rl.entries))
	copy(out, rl.entries)
	return out
}

// Clear removes all entries.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = rl.entries[:0]
}

// FaultConfig describes a fault injected for an endpoint pattern.
type FaultConfig struct {
	StatusCode int     `json:"status_code"`
	Body       string  `json:"body,omitempty"`
	DelayMS    int     `json:"delay_ms,omitempty"`
	Rate       float64 `json:"rate"` // 0.0-1.0; zero means always
}

// FaultRegistry maps endpoint patterns to injected faults. A pattern
// matches its exact path and every path below it, so "/api/Story/Edit"
// covers "/api/Story/Edit/{id}".
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]FaultConfig
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]FaultConfig)}
}

// Set injects a fault for pattern.
func (fr *FaultRegistry) Set(pattern string, fault FaultConfig) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fault.Rate == 0 {
		fault.Rate = 1.0
	}
	fr.faults[normalizePattern(pattern)] = fault
}

// Remove deletes the fault for pattern and reports whether one existed.
func (fr *FaultRegistry) Remove(pattern string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	pattern = normalizePattern(pattern)
	_, existed := fr.faults[pattern]
	delete(fr.faults, pattern)
	return existed
}

// Check returns the fault that applies to path, or nil. The longest
// matching pattern wins.
func (fr *FaultRegistry) Check(path string) *FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	best := ""
	for pattern := range fr.faults {
		if path == pattern || strings.HasPrefix(path, pattern+"/") {
			if len(pattern) > len(best) {
				best = pattern
			}
		}
	}
	if best == "" {
		return nil
	}
	f := fr.faults[best]
	if f.Rate >= 1.0 || rand.Float64() < f.Rate {
		return &f
	}
	return nil
}

// All returns a copy of every registered fault.
func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make(map[string]FaultConfig, len(fr.faults))
	for k, v := range fr.faults {
		out[k] = v
	}
	return out
}

// Patterns returns the registered patterns, sorted.
func (fr *FaultRegistry) Patterns() []string {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make([]string, 0, len(fr.faults))
	for k := range fr.faults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]FaultConfig)
}

func normalizePattern(p string) string {
	return "/" + strings.Trim(p, "/")
}

// Settings exposes the runtime-adjustable knobs the middleware reads on
// every request.
type Settings interface {
	Latency() time.Duration
	FailRate() float64
	Verbose() bool
}

// Middleware provides the common middleware of the twin.
type Middleware struct {
	settings Settings
	logger   *zap.Logger
	metrics  *Metrics
	ReqLog   *RequestLog
	Faults   *FaultRegistry
}

// NewMiddleware creates a Middleware. metrics may be nil.
func NewMiddleware(settings Settings, logger *zap.Logger, metrics *Metrics) *Middleware {
	return &Middleware{
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		ReqLog:   NewRequestLog(1000),
		Faults:   NewFaultRegistry(),
	}
}

// RequestID reuses an incoming X-Request-Id or assigns a fresh UUID. The
// id is stored where chi's middleware.GetReqID finds it.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORS adds permissive CORS headers.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-Id")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLog records every request in the ring buffer. In verbose mode it
// also keeps headers and logs a debug line. Authorization is never kept.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry := RequestLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: status,
			Duration:   time.Since(start),
			RequestID:  chimw.GetReqID(r.Context()),
		}
		verbose := m.settings.Verbose()
		if verbose {
			entry.Headers = make(map[string]string)
			for k := range r.Header {
				if k == "Authorization" {
					continue
				}
				entry.Headers[k] = r.Header.Get(k)
			}
		}
		m.ReqLog.Add(entry)

		if verbose {
			m.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", entry.Duration),
				zap.String("request_id", entry.RequestID),
			)
		}
	})
}

// Metrics counts requests and observes latency by chi route pattern, so
// story ids do not explode label cardinality.
func (m *Middleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.metrics.Duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// LatencyInjection delays every request by 80-120% of the configured latency.
func (m *Middleware) LatencyInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if latency := m.settings.Latency(); latency > 0 {
			jitter := 0.8 + rand.Float64()*0.4
			time.Sleep(time.Duration(float64(latency) * jitter))
		}
		next.ServeHTTP(w, r)
	})
}

// RandomFailure returns 500 for a configured fraction of requests.
// Admin endpoints are exempt so a flaky twin can still be controlled.
func (m *Middleware) RandomFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rate := m.settings.FailRate()
		if rate > 0 && !strings.HasPrefix(r.URL.Path, "/admin/") && rand.Float64() < rate {
			m.countFault("random")
			Error(w, http.StatusInternalServerError, "simulated random failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FaultInjection applies registered faults. Mount it inside the API route
// group only, so admin endpoints are never affected.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fault := m.Faults.Check(r.URL.Path); fault != nil {
			if fault.DelayMS > 0 {
				time.Sleep(time.Duration(fault.DelayMS) * time.Millisecond)
			}
			if fault.StatusCode > 0 {
				m.countFault("injected")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(fault.StatusCode)
				if fault.Body != "" {
					fmt.Fprint(w, fault.Body)
				} else {
					fmt.Fprintf(w, `{"msg":"injected fault","code":%d}`, fault.StatusCode)
				}
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) countFault(kind string) {
	if m.metrics != nil {
		m.metrics.Faults.WithLabelValues(kind).Inc()
	}
}
