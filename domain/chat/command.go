package chat

import (
	"github.com/google/uuid"
)

// CreateChatCommand is the intent to open a chat with a fixed set of members.
type CreateChatCommand struct {
	Name         *string
	Participants []uuid.UUID
}

// PostMessageCommand is an accepted inbound chat message, before the store
// assigns its identifier and timestamp.
type PostMessageCommand struct {
	ChatID   uuid.UUID
	AuthorID uuid.UUID
	Content  string
}
