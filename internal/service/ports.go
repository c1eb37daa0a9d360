package service

import (
	"context"

	"github.com/amarket/chat-service/internal/domain"
)

type ConversationStore interface {
	Get(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error)
	GetOrCreate(ctx context.Context, a, b domain.UserID) (*domain.Conversation, bool, error)
	Delete(ctx context.Context, a, b domain.UserID) error
	ListForUser(ctx context.Context, userID domain.UserID) ([]domain.ConversationSummary, error)
}

type MessageStore interface {
	Create(ctx context.Context, conversationID int64, sender, receiver domain.UserID, content string) (*domain.Message, error)
	MarkRead(ctx context.Context, id int64) (bool, error)
	MarkAllRead(ctx context.Context, sender, receiver domain.UserID) (int64, error)
	ListBetween(ctx context.Context, a, b domain.UserID, search string) ([]domain.Message, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Publisher — fan-out события в комнату (реализует ws.Hub).
type Publisher interface {
	Publish(key string, ev domain.Event)
}
