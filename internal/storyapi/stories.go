package storyapi

import (
	"context"
	"net/http"
	"net/url"
)

// Story endpoint paths.
const (
	CreatePath = "/api/Story/Create"
	EditPath   = "/api/Story/Edit/"
	ListPath   = "/api/Story/All"
	DeletePath = "/api/Story/Delete/"
)

// Stories is a typed facade over Client for the /api/Story endpoints.
type Stories struct {
	c *Client
}

// NewStories wraps c.
func NewStories(c *Client) *Stories {
	return &Stories{c: c}
}

// Create calls POST /api/Story/Create.
func (s *Stories) Create(ctx context.Context, p StoryPayload) (*Response, error) {
	return s.c.Execute(ctx, Request{Method: http.MethodPost, Path: CreatePath, Body: p})
}

// Edit calls PUT /api/Story/Edit/{id}. An empty id is sent as-is.
func (s *Stories) Edit(ctx context.Context, id string, p StoryPayload) (*Response, error) {
	return s.c.Execute(ctx, Request{Method: http.MethodPut, Path: EditPath + url.PathEscape(id), Body: p})
}

// List calls GET /api/Story/All.
func (s *Stories) List(ctx context.Context) (*Response, error) {
	return s.c.Execute(ctx, Request{Method: http.MethodGet, Path: ListPath})
}

// Delete calls DELETE /api/Story/Delete/{id}.
func (s *Stories) Delete(ctx context.Context, id string) (*Response, error) {
	return s.c.Execute(ctx, Request{Method: http.MethodDelete, Path: DeletePath + url.PathEscape(id)})
}
