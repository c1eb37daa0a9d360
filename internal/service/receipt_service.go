package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/internal/metrics"
)

type ReadMarker interface {
	MarkRead(ctx context.Context, messageID int64) (bool, error)
	MarkAllRead(ctx context.Context, sender, receiver domain.UserID) (int64, error)
}

// ReceiptService переводит сообщения Sent -> Read.
//
// Живой путь: событие new_message дошло до соединения получателя -> MarkRead -> read_receipt в комнату.
// Путь треда: получатель открыл тред -> MarkAllRead без поштучных receipt'ов.
type ReceiptService struct {
	store   ReadMarker
	pub     Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReceiptService(store ReadMarker, pub Publisher, m *metrics.Metrics) *ReceiptService {
	return &ReceiptService{store: store, pub: pub, metrics: m, now: time.Now}
}

// OnDelivered вызывается соединением viewer, получившим ev. Возвращает true, если опубликован receipt.
// Присутствие получателя в комнате считается прочтением.
func (s *ReceiptService) OnDelivered(ctx context.Context, ev domain.NewMessageEvent, viewer domain.User) (bool, error) {
	if ev.MessageID == 0 || viewer.ID != ev.ReceiverID {
		return false, nil
	}

	changed, err := s.store.MarkRead(ctx, ev.MessageID)
	if err != nil {
		return false, err
	}
	// второе устройство получателя не должно слать повторный receipt
	if !changed {
		return false, nil
	}
	s.metrics.MessagesRead("live", 1)

	s.pub.Publish(domain.RoomKey(ev.Sender, ev.Receiver), domain.ReadReceiptEvent{
		MessageID: ev.MessageID,
		SenderID:  ev.SenderID,
		ReaderID:  viewer.ID,
		Reader:    viewer.Username,
		ReadAt:    s.now(),
	})
	slog.DebugContext(ctx, "read receipt published",
		"message_id", ev.MessageID, "reader", viewer.Username)

	return true, nil
}

// OnThreadOpened — догоняющий pull: всё непрочитанное от sender к reader становится прочитанным.
func (s *ReceiptService) OnThreadOpened(ctx context.Context, reader, sender domain.UserID) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, sender, reader)
	if err != nil {
		return 0, err
	}
	s.metrics.MessagesRead("thread", n)
	return n, nil
}
