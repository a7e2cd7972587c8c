package domain

import (
	"errors"
	"fmt"
)

var ErrConversationNotFound = errors.New("conversation not found")

// NotFoundError reports an operation on a conversation id missing from the roster.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrConversationNotFound }
