// Package suite is the ordered create, edit, list and delete sequence run
// against the story service, and the runner that executes it.
package suite

import (
	"context"
	"fmt"
	"net/http"

	"github.com/storyspoiler/storycheck/internal/storyapi"
)

// StoryRef is the id of the story created by the first step. It is handed
// from step to step by the runner and is stale once the story is deleted.
type StoryRef string

// Step is one entry of a Plan. Run receives the current StoryRef and returns
// the one the next step sees; steps that do not create a story return ref
// unchanged.
type Step struct {
	Name string
	Run  func(ctx context.Context, api *storyapi.Stories, ref StoryRef) (StoryRef, error)
}

// Step names, in plan order.
const (
	NameCreate            = "create story"
	NameEdit              = "edit story"
	NameList              = "list stories"
	NameDelete            = "delete story"
	NameCreateInvalid     = "create story without required fields"
	NameEditMissing       = "edit missing story"
	NameDeleteMissing     = "delete missing story"
	NameDeleteAlreadyGone = "delete deleted story"
)

var (
	firstStory = storyapi.StoryPayload{
		Title:       "My First Story Spoiler",
		Description: "This is my first story spoiler so far.",
	}
	editedStory = storyapi.StoryPayload{
		Title:       "My first edited story",
		Description: "This is the updated version of my first story.",
	}
)

// Plan returns the ordered steps. missingID must not exist on the server.
// With verifyDeletion a second delete of the created story is appended.
func Plan(missingID string, verifyDeletion bool) []Step {
	steps := []Step{
		{Name: NameCreate, Run: func(ctx context.Context, api *storyapi.Stories, _ StoryRef) (StoryRef, error) {
			return CreateStory(ctx, api)
		}},
		{Name: NameEdit, Run: keep(EditStory)},
		{Name: NameList, Run: keep(func(ctx context.Context, api *storyapi.Stories, _ StoryRef) error {
			return ListStories(ctx, api)
		})},
		{Name: NameDelete, Run: keep(DeleteStory)},
		{Name: NameCreateInvalid, Run: keep(func(ctx context.Context, api *storyapi.Stories, _ StoryRef) error {
			return CreateWithoutRequiredFields(ctx, api)
		})},
		{Name: NameEditMissing, Run: keep(func(ctx context.Context, api *storyapi.Stories, _ StoryRef) error {
			return EditMissingStory(ctx, api, missingID)
		})},
		{Name: NameDeleteMissing, Run: keep(func(ctx context.Context, api *storyapi.Stories, _ StoryRef) error {
			return DeleteMissingStory(ctx, api, missingID)
		})},
	}
	if verifyDeletion {
		steps = append(steps, Step{Name: NameDeleteAlreadyGone, Run: keep(DeleteDeletedStory)})
	}
	return steps
}

func keep(fn func(ctx context.Context, api *storyapi.Stories, ref StoryRef) error) func(context.Context, *storyapi.Stories, StoryRef) (StoryRef, error) {
	return func(ctx context.Context, api *storyapi.Stories, ref StoryRef) (StoryRef, error) {
		return ref, fn(ctx, api, ref)
	}
}

// CreateStory creates the first story and returns its id. The ref is empty
// unless every check passed.
func CreateStory(ctx context.Context, api *storyapi.Stories) (StoryRef, error) {
	resp, err := api.Create(ctx, firstStory)
	if err != nil {
		return "", err
	}
	if err := expectStatus(NameCreate, resp, http.StatusCreated); err != nil {
		return "", err
	}
	out, err := expectMessage(NameCreate, resp, storyapi.MsgCreated)
	if err != nil {
		return "", err
	}
	created, ok := out.(storyapi.Created)
	if !ok {
		return "", &AssertionError{Step: NameCreate, Field: "storyId", Expected: "non-empty id", Actual: "missing", Body: bodySnippet(resp.Body)}
	}
	return StoryRef(created.StoryID), nil
}

// EditStory edits the story behind ref. An empty ref is sent as-is.
func EditStory(ctx context.Context, api *storyapi.Stories, ref StoryRef) error {
	resp, err := api.Edit(ctx, string(ref), editedStory)
	if err != nil {
		return err
	}
	if err := expectStatus(NameEdit, resp, http.StatusOK); err != nil {
		return err
	}
	_, err = expectMessage(NameEdit, resp, storyapi.MsgEdited)
	return err
}

// ListStories expects at least one story.
func ListStories(ctx context.Context, api *storyapi.Stories) error {
	resp, err := api.List(ctx)
	if err != nil {
		return err
	}
	if err := expectStatus(NameList, resp, http.StatusOK); err != nil {
		return err
	}
	return expectNonEmpty(NameList, resp)
}

// DeleteStory deletes the story behind ref.
func DeleteStory(ctx context.Context, api *storyapi.Stories, ref StoryRef) error {
	resp, err := api.Delete(ctx, string(ref))
	if err != nil {
		return err
	}
	if err := expectStatus(NameDelete, resp, http.StatusOK); err != nil {
		return err
	}
	_, err = expectMessage(NameDelete, resp, storyapi.MsgDeleted)
	return err
}

// CreateWithoutRequiredFields only checks the status; the message is not
// part of the contract.
func CreateWithoutRequiredFields(ctx context.Context, api *storyapi.Stories) error {
	resp, err := api.Create(ctx, storyapi.StoryPayload{})
	if err != nil {
		return err
	}
	return expectStatus(NameCreateInvalid, resp, http.StatusBadRequest)
}

// EditMissingStory edits an id that must not exist.
func EditMissingStory(ctx context.Context, api *storyapi.Stories, id string) error {
	resp, err := api.Edit(ctx, id, editedStory)
	if err != nil {
		return err
	}
	if err := expectStatus(NameEditMissing, resp, http.StatusNotFound); err != nil {
		return err
	}
	_, err = expectMessage(NameEditMissing, resp, storyapi.MsgNoSpoilers)
	return err
}

// DeleteMissingStory deletes an id that must not exist.
func DeleteMissingStory(ctx context.Context, api *storyapi.Stories, id string) error {
	resp, err := api.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := expectStatus(NameDeleteMissing, resp, http.StatusBadRequest); err != nil {
		return err
	}
	_, err = expectMessage(NameDeleteMissing, resp, storyapi.MsgUnableToDelete)
	return err
}

// DeleteDeletedStory deletes ref a second time and expects the service to
// refuse, proving the first delete removed it.
func DeleteDeletedStory(ctx context.Context, api *storyapi.Stories, ref StoryRef) error {
	if ref == "" {
		return fmt.Errorf("%s: no story was created", NameDeleteAlreadyGone)
	}
	resp, err := api.Delete(ctx, string(ref))
	if err != nil {
		return err
	}
	if err := expectStatus(NameDeleteAlreadyGone, resp, http.StatusBadRequest); err != nil {
		return err
	}
	_, err = expectMessage(NameDeleteAlreadyGone, resp, storyapi.MsgUnableToDelete)
	return err
}
