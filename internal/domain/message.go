package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const DefaultMaxMessageLength = 4000

type Message struct {
	ID             int64      `db:"id"`
	ConversationID int64      `db:"conversation_id"`
	SenderID       UserID     `db:"sender_id"`
	ReceiverID     UserID     `db:"receiver_id"`
	Content        string     `db:"content"`
	CreatedAt      time.Time  `db:"created_at"`
	IsRead         bool       `db:"is_read"`
	ReadAt         *time.Time `db:"read_at"`
}

// NormalizeContent обрезает пробелы и проверяет длину (в рунах).
// Ошибка всегда оборачивает ErrValidation.
func NormalizeContent(s string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: %w", ErrValidation, ErrEmptyMessage)
	}
	if utf8.RuneCountInString(s) > maxLen {
		return "", fmt.Errorf("%w: %w", ErrValidation, ErrMessageTooLong)
	}
	return s, nil
}
