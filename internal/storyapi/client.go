package storyapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Request is one call made through a Client. Body, when non-nil, is sent
// as JSON; a []byte body is sent verbatim. Headers override the defaults.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    any
}

// Response is the raw result of a call.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Duration   time.Duration
}

// Outcome decodes the body as an Envelope.
func (r *Response) Outcome() (Outcome, error) {
	return DecodeOutcome(r.Body)
}

// Stories decodes the body as a story list.
func (r *Response) Stories() ([]Story, error) {
	return DecodeStories(r.Body)
}

// Client is an HTTP client bound to one base URL and one bearer token.
// It is built once per run and reused for every story call.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient builds an authenticated client. An empty token is rejected so a
// failed login can never yield a working client.
func NewClient(baseURL string, token Token, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(token.Raw) == "" {
		return nil, &Error{Kind: KindAuth, Op: "build client", Err: errors.New("empty bearer token")}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := newResty(baseURL, logger)
	rc.SetAuthToken(token.Raw)

	return &Client{
		http:   rc,
		logger: logger.Named("storyapi"),
	}, nil
}

// BaseURL returns the origin every path is resolved against.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// Execute sends req and returns the status and raw body. Non-2xx statuses
// are not errors; only a missing response is.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	r := c.http.R().SetContext(ctx)
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		return nil, &Error{Kind: KindTransport, Op: req.Method + " " + req.Path, Err: err}
	}

	c.logger.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", resp.Time()),
	)

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Header:     resp.Header(),
		Duration:   resp.Time(),
	}, nil
}

// Close releases idle connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// newResty returns the base resty client shared by login and story calls.
// No timeout is set; a call blocks until the server answers or the context ends.
func newResty(baseURL string, logger *zap.Logger) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar().Named("resty"))
}
