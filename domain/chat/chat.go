// Package chat contains the core concepts of the chat system.
// No runtime, network or storage logic should be added here.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Chat is created once with all its members and never renamed here.
type Chat struct {
	ID        uuid.UUID
	Name      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant is a membership row, unique on (ChatID, UserID).
type Participant struct {
	ChatID   uuid.UUID
	UserID   uuid.UUID
	JoinedAt time.Time
}

// UserIdentity is owned by the identity service and only read here.
type UserIdentity struct {
	ID       uuid.UUID
	Username string
	Email    string
}
