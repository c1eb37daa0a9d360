package service

import (
	"context"
	"errors"

	"github.com/amarket/chat-service/internal/domain"
)

type ThreadView struct {
	Conversation domain.Conversation
	Peer         domain.User
	Search       string
	Messages     []domain.Message
	MarkedRead   int64
}

// HistoryService — read-side для списка диалогов и треда.
type HistoryService struct {
	chat     *ChatService
	receipts *ReceiptService
}

func NewHistoryService(chat *ChatService, receipts *ReceiptService) *HistoryService {
	return &HistoryService{chat: chat, receipts: receipts}
}

func (s *HistoryService) Conversations(ctx context.Context, me domain.User) ([]domain.ConversationSummary, error) {
	return s.chat.ListConversations(ctx, me.ID)
}

// Thread открывает тред с username: требует существующий диалог,
// помечает входящие прочитанными и отдаёт сообщения от старых к новым.
func (s *HistoryService) Thread(ctx context.Context, me domain.User, username, search string) (*ThreadView, error) {
	peer, err := s.chat.ResolvePeer(ctx, me, username)
	if err != nil {
		return nil, err
	}
	conv, err := s.chat.convs.Get(ctx, me.ID, peer.ID)
	if err != nil {
		return nil, err
	}

	marked, err := s.receipts.OnThreadOpened(ctx, me.ID, peer.ID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.chat.ListMessages(ctx, me.ID, peer.ID, search)
	if err != nil {
		return nil, err
	}

	return &ThreadView{
		Conversation: *conv,
		Peer:         *peer,
		Search:       search,
		Messages:     msgs,
		MarkedRead:   marked,
	}, nil
}

// ConversationsWith — список для полного вида треда: открытый собеседник всегда в списке.
func (s *HistoryService) ConversationsWith(ctx context.Context, me domain.User, peer domain.User) ([]domain.ConversationSummary, error) {
	list, err := s.Conversations(ctx, me)
	if err != nil {
		return nil, err
	}
	for _, it := range list {
		if it.Peer.ID == peer.ID {
			return list, nil
		}
	}
	return append([]domain.ConversationSummary{{Peer: peer}}, list...), nil
}

// IsRedirect — ошибки, на которые действия отвечают возвратом к списку диалогов.
func IsRedirect(err error) bool {
	return errors.Is(err, domain.ErrSelfConversation) || errors.Is(err, domain.ErrConversationNotFound)
}
