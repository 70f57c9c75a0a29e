package chat

import (
	"chat-service/errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxContentLength is the upper bound on message content, in characters.
const DefaultMaxContentLength = 5000

// Message is immutable once stored. CreatedAt is assigned by the store.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	AuthorID  uuid.UUID
	Content   string
	CreatedAt time.Time
}

// ValidateContent rejects blank content and content longer than maxLength characters.
func ValidateContent(content string, maxLength int) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyContent
	}
	if n := utf8.RuneCountInString(content); n > maxLength {
		return fmt.Errorf("%w: %d characters, maximum %d", errors.ErrContentTooLong, n, maxLength)
	}
	return nil
}
