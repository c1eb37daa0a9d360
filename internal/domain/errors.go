package domain

import "errors"

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrUserNotFound           = errors.New("user not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrSelfConversation       = errors.New("cannot chat with yourself")
	ErrNotParticipant         = errors.New("user is not a participant")

	// ErrAlreadyExists — нарушение уникальности; наружу из store не выходит.
	ErrAlreadyExists = errors.New("already exists")

	ErrValidation     = errors.New("validation error")
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
)
