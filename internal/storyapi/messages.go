package storyapi

// Messages the story service puts in Envelope.Msg.
const (
	MsgCreated        = "Successfully created!"
	MsgEdited         = "Successfully edited"
	MsgDeleted        = "Deleted successfully!"
	MsgNoSpoilers     = "No spoilers..."
	MsgUnableToDelete = "Unable to delete this story spoiler!"
)
