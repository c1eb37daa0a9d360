package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/internal/metrics"
)

// ChatService — хранилище диалогов и сообщений поверх репозиториев.
type ChatService struct {
	users    UserDirectory
	convs    ConversationStore
	messages MessageStore
	metrics  *metrics.Metrics

	maxMessageLength int
}

func NewChatService(users UserDirectory, convs ConversationStore, messages MessageStore, m *metrics.Metrics) *ChatService {
	return &ChatService{
		users:            users,
		convs:            convs,
		messages:         messages,
		metrics:          m,
		maxMessageLength: domain.DefaultMaxMessageLength,
	}
}

func (s *ChatService) SetMaxMessageLength(n int) {
	if n > 0 {
		s.maxMessageLength = n
	}
}

func (s *ChatService) UserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *ChatService) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// GetOrCreateConversation симметричен: (a,b) и (b,a) дают один и тот же диалог.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	c, _, err := s.convs.GetOrCreate(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AppendMessage валидирует текст до любой записи, затем лениво создаёт диалог и сохраняет сообщение.
func (s *ChatService) AppendMessage(ctx context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error) {
	text, err := domain.NormalizeContent(content, s.maxMessageLength)
	if err != nil {
		reason := "empty"
		if errors.Is(err, domain.ErrMessageTooLong) {
			reason = "too_long"
		}
		s.metrics.MessageRejected(reason)
		return nil, err
	}
	if sender == receiver {
		return nil, domain.ErrSelfConversation
	}

	conv, _, err := s.convs.GetOrCreate(ctx, sender, receiver)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	msg, err := s.messages.Create(ctx, conv.ID, sender, receiver, text)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	s.metrics.MessagePersisted()

	return msg, nil
}

func (s *ChatService) MarkRead(ctx context.Context, messageID int64) (bool, error) {
	return s.messages.MarkRead(ctx, messageID)
}

func (s *ChatService) MarkAllRead(ctx context.Context, sender, receiver domain.UserID) (int64, error) {
	return s.messages.MarkAllRead(ctx, sender, receiver)
}

func (s *ChatService) ListMessages(ctx context.Context, a, b domain.UserID, search string) ([]domain.Message, error) {
	return s.messages.ListBetween(ctx, a, b, search)
}

func (s *ChatService) ListConversations(ctx context.Context, userID domain.UserID) ([]domain.ConversationSummary, error) {
	return s.convs.ListForUser(ctx, userID)
}

func (s *ChatService) DeleteThread(ctx context.Context, a, b domain.UserID) error {
	return s.convs.Delete(ctx, a, b)
}

// ResolvePeer находит собеседника по username и запрещает чат с самим собой.
func (s *ChatService) ResolvePeer(ctx context.Context, me domain.User, username string) (*domain.User, error) {
	peer, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if peer.ID == me.ID {
		return nil, domain.ErrSelfConversation
	}
	return peer, nil
}

// StartConversation — действие "написать продавцу": гарантирует строку диалога.
func (s *ChatService) StartConversation(ctx context.Context, me domain.User, username string) (*domain.Conversation, *domain.User, error) {
	peer, err := s.ResolvePeer(ctx, me, username)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.GetOrCreateConversation(ctx, me.ID, peer.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, peer, nil
}

// DeleteThreadWith удаляет общий тред вызывающего и username. Необратимо.
func (s *ChatService) DeleteThreadWith(ctx context.Context, me domain.User, username string) (*domain.User, error) {
	peer, err := s.ResolvePeer(ctx, me, username)
	if err != nil {
		return nil, err
	}
	if err := s.convs.Delete(ctx, me.ID, peer.ID); err != nil {
		return nil, err
	}
	return peer, nil
}
