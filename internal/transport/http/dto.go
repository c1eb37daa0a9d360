package http

import (
	"time"

	"github.com/amarket/chat-service/internal/domain"
)

type UserItem struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type MessageItem struct {
	ID        int64      `json:"id"`
	Sender    string     `json:"sender"`
	Receiver  string     `json:"receiver"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

type ConversationItem struct {
	ID          int64        `json:"id,omitempty"`
	Peer        UserItem     `json:"peer"`
	LastMessage *MessageItem `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	RoomKey     string       `json:"room_key"`
}

type ConversationsResponse struct {
	Active        string             `json:"active,omitempty"`
	Conversations []ConversationItem `json:"conversations"`
}

type StartResponse struct {
	ConversationID int64    `json:"conversation_id"`
	Peer           UserItem `json:"peer"`
	ThreadURL      string   `json:"thread_url"`
	RoomKey        string   `json:"room_key"`
}

// ThreadResponse: Conversations заполняется только для полного вида.
type ThreadResponse struct {
	Peer          UserItem           `json:"peer"`
	Search        string             `json:"search"`
	Messages      []MessageItem      `json:"messages"`
	RoomKey       string             `json:"room_key"`
	Conversations []ConversationItem `json:"conversations,omitempty"`
}

func toUserItem(u domain.User) UserItem {
	return UserItem{ID: int64(u.ID), Username: u.Username}
}

// toMessageItem: сообщение всегда между me и peer.
func toMessageItem(m domain.Message, me, peer domain.User) MessageItem {
	sender, receiver := me, peer
	if m.SenderID == peer.ID {
		sender, receiver = peer, me
	}
	return MessageItem{
		ID:        m.ID,
		Sender:    sender.Username,
		Receiver:  receiver.Username,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		IsRead:    m.IsRead,
		ReadAt:    m.ReadAt,
	}
}

func toConversationItems(list []domain.ConversationSummary, me domain.User) []ConversationItem {
	out := make([]ConversationItem, 0, len(list))
	for _, s := range list {
		it := ConversationItem{
			ID:          s.Conversation.ID,
			Peer:        toUserItem(s.Peer),
			UnreadCount: s.UnreadCount,
			RoomKey:     domain.RoomKeyOf(me, s.Peer),
		}
		if s.LastMessage != nil {
			m := toMessageItem(*s.LastMessage, me, s.Peer)
			it.LastMessage = &m
		}
		out = append(out, it)
	}
	return out
}
