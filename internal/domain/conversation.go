package domain

import "time"

// Conversation — неупорядоченная пара участников.
// В БД хранится канонически: UserLow < UserHigh.
type Conversation struct {
	ID        int64     `db:"id"`
	UserLow   UserID    `db:"user_low"`
	UserHigh  UserID    `db:"user_high"`
	CreatedAt time.Time `db:"created_at"`
}

// CanonicalPair упорядочивает пару по id.
func CanonicalPair(a, b UserID) (low, high UserID) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c Conversation) Has(id UserID) bool {
	return c.UserLow == id || c.UserHigh == id
}

// Other возвращает второго участника.
func (c Conversation) Other(id UserID) UserID {
	if c.UserLow == id {
		return c.UserHigh
	}
	return c.UserLow
}

// ConversationSummary — строка списка диалогов.
type ConversationSummary struct {
	Conversation Conversation
	Peer         User
	LastMessage  *Message
	UnreadCount  int
}
