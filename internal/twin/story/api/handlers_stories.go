package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storyspoiler/storycheck/internal/twin/story/store"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

type storyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (req storyRequest) valid() bool {
	return req.Title != "" && req.Description != ""
}

// storyView is the public shape of a story in list responses.
type storyView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type createResponse struct {
	Msg     string `json:"msg"`
	StoryID string `json:"storyId"`
}

// CreateStory handles POST /api/Story/Create.
func (h *Handler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if !req.valid() {
		twincore.Error(w, http.StatusBadRequest, msgRequired)
		return
	}

	now := h.store.Clock.Now()
	st := store.Story{
		ID:          h.store.Stories.NextID(),
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		CreatedBy:   subjectFrom(r.Context()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	h.store.Stories.Set(st.ID, st)

	twincore.JSON(w, http.StatusCreated, createResponse{Msg: msgCreated, StoryID: st.ID})
}

// EditStory handles PUT /api/Story/Edit/{id}. An unknown id is reported
// before the body is looked at.
func (h *Handler) EditStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Stories.Get(id); !ok {
		twincore.Message(w, http.StatusNotFound, msgNoSpoilers)
		return
	}

	var req storyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if !req.valid() {
		twincore.Error(w, http.StatusBadRequest, msgRequired)
		return
	}

	now := h.store.Clock.Now()
	updated := h.store.Stories.Update(id, func(st store.Story) store.Story {
		st.Title = req.Title
		st.Description = req.Description
		st.URL = req.URL
		st.UpdatedAt = now
		return st
	})
	if !updated {
		// deleted between the lookup and the update
		twincore.Message(w, http.StatusNotFound, msgNoSpoilers)
		return
	}

	twincore.Message(w, http.StatusOK, msgEdited)
}

// ListStories handles GET /api/Story/All.
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories := h.store.Stories.List()
	out := make([]storyView, 0, len(stories))
	for _, st := range stories {
		out = append(out, storyView{ID: st.ID, Title: st.Title, Description: st.Description, URL: st.URL})
	}
	twincore.JSON(w, http.StatusOK, out)
}

// DeleteStory handles DELETE /api/Story/Delete/{id}.
func (h *Handler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	if !h.store.Stories.Delete(chi.URLParam(r, "id")) {
		twincore.Error(w, http.StatusBadRequest, msgUnableToDelete)
		return
	}
	twincore.Message(w, http.StatusOK, msgDeleted)
}
