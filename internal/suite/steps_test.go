package suite

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	tsuite "github.com/stretchr/testify/suite"

	"github.com/storyspoiler/storycheck/internal/storyapi"
	"github.com/storyspoiler/storycheck/internal/twin/story"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
	"github.com/storyspoiler/storycheck/internal/twin/twintest"
)

// StepsSuite drives each step function directly against a fresh twin.
type StepsSuite struct {
	tsuite.Suite

	twin   *story.Twin
	client *storyapi.Client
	api    *storyapi.Stories
	ctx    context.Context
}

func (s *StepsSuite) SetupTest() {
	tw, srv := twintest.Start(s.T())
	s.twin = tw
	s.ctx = context.Background()

	client, err := storyapi.Connect(s.ctx, srv.URL, storyapi.Credentials{
		Username: twintest.Username,
		Password: twintest.Password,
	}, nil)
	s.Require().NoError(err)
	s.client = client
	s.api = storyapi.NewStories(client)
}

func (s *StepsSuite) TearDownTest() {
	s.client.Close()
}

func (s *StepsSuite) TestCreateReturnsRef() {
	ref, err := CreateStory(s.ctx, s.api)
	s.Require().NoError(err)
	s.NotEmpty(ref)

	stored, ok := s.twin.Store.Stories.Get(string(ref))
	s.Require().True(ok)
	s.Equal("My First Story Spoiler", stored.Title)
}

func (s *StepsSuite) TestCreateWithoutStoryIDFails() {
	s.twin.Middleware().Faults.Set(storyapi.CreatePath, twincore.FaultConfig{
		StatusCode: http.StatusCreated,
		Body:       `{"msg":"Successfully created!"}`,
	})

	ref, err := CreateStory(s.ctx, s.api)
	s.Empty(ref)

	var ae *AssertionError
	s.Require().True(errors.As(err, &ae))
	s.Equal("storyId", ae.Field)
}

func (s *StepsSuite) TestCreateWrongMessageFails() {
	s.twin.Middleware().Faults.Set(storyapi.CreatePath, twincore.FaultConfig{
		StatusCode: http.StatusCreated,
		Body:       `{"msg":"Created","storyId":"x"}`,
	})

	ref, err := CreateStory(s.ctx, s.api)
	s.Empty(ref)

	var ae *AssertionError
	s.Require().True(errors.As(err, &ae))
	s.Equal("msg", ae.Field)
	s.Equal(`"Created"`, ae.Actual)
}

func (s *StepsSuite) TestEditAndDeleteCreatedStory() {
	ref, err := CreateStory(s.ctx, s.api)
	s.Require().NoError(err)

	s.NoError(EditStory(s.ctx, s.api, ref))
	stored, _ := s.twin.Store.Stories.Get(string(ref))
	s.Equal("My first edited story", stored.Title)

	s.NoError(ListStories(s.ctx, s.api))
	s.NoError(DeleteStory(s.ctx, s.api, ref))
	s.NoError(DeleteDeletedStory(s.ctx, s.api, ref))
}

func (s *StepsSuite) TestEditWithEmptyRefFails() {
	s.Error(EditStory(s.ctx, s.api, ""))
	s.Error(DeleteStory(s.ctx, s.api, ""))
}

func (s *StepsSuite) TestListEmptyFails() {
	err := ListStories(s.ctx, s.api)

	var ae *AssertionError
	s.Require().True(errors.As(err, &ae))
	s.Equal("stories", ae.Field)
}

func (s *StepsSuite) TestNegativePaths() {
	s.NoError(CreateWithoutRequiredFields(s.ctx, s.api))
	s.NoError(EditMissingStory(s.ctx, s.api, "358"))
	s.NoError(DeleteMissingStory(s.ctx, s.api, "358"))
}

func (s *StepsSuite) TestDeleteDeletedStoryNeedsRef() {
	s.Error(DeleteDeletedStory(s.ctx, s.api, ""))
}

func (s *StepsSuite) TestDeleteDeletedStoryFailsWhenStillPresent() {
	ref, err := CreateStory(s.ctx, s.api)
	s.Require().NoError(err)

	var ae *AssertionError
	s.Require().True(errors.As(DeleteDeletedStory(s.ctx, s.api, ref), &ae))
	s.Equal(http.StatusBadRequest, ae.Expected)
	s.Equal(http.StatusOK, ae.Actual)
}

func TestStepsSuite(t *testing.T) {
	tsuite.Run(t, new(StepsSuite))
}

func TestBodySnippetTruncates(t *testing.T) {
	long := make([]byte, maxBody+10)
	for i := range long {
		long[i] = 'a'
	}
	got := bodySnippet(long)
	require.Len(t, got, maxBody+3)
}
