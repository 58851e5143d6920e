// Package storyapi is the client side of the story service: login, an
// authenticated HTTP client, and the request/response shapes of the
// /api/Story endpoints.
package storyapi

import (
	"encoding/json"
)

// Credentials are exchanged for a Token once per run.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StoryPayload is the body of create and edit requests.
type StoryPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Story is one element of the GET /api/Story/All response.
type Story struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Envelope is the wire shape every story endpoint answers with.
// StoryID is only set by a successful create.
type Envelope struct {
	Msg     string `json:"msg"`
	StoryID string `json:"storyId,omitempty"`
}

// Outcome is a decoded Envelope: either Created or Reply.
type Outcome interface {
	Message() string
	outcome()
}

// Created is the outcome of a successful create. StoryID is never empty.
type Created struct {
	Msg     string
	StoryID string
}

// Reply is any outcome that carries only a message.
type Reply struct {
	Msg string
}

func (c Created) Message() string { return c.Msg }
func (r Reply) Message() string   { return r.Msg }

func (Created) outcome() {}
func (Reply) outcome()   {}

// Outcome converts the wire envelope into its tagged form.
func (e Envelope) Outcome() Outcome {
	if e.StoryID != "" {
		return Created{Msg: e.Msg, StoryID: e.StoryID}
	}
	return Reply{Msg: e.Msg}
}

// DecodeOutcome parses an envelope body.
func DecodeOutcome(body []byte) (Outcome, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode envelope", Err: err}
	}
	return env.Outcome(), nil
}

// DecodeStories parses a story list body.
func DecodeStories(body []byte) ([]Story, error) {
	var stories []Story
	if err := json.Unmarshal(body, &stories); err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode story list", Err: err}
	}
	return stories, nil
}
