package domain

import "time"

type EventKind string

const (
	EventNewMessage  EventKind = "new_message"
	EventReadReceipt EventKind = "read_receipt"
)

// Event — событие комнаты. Набор реализаций закрыт (NewMessageEvent, ReadReceiptEvent),
// обработчики разбирают его через type switch.
type Event interface {
	Kind() EventKind
	// Between — относится ли событие к паре (a, b). Ключ комнаты у разных пар
	// может совпасть ("a_b"+"c" и "a"+"b_c"), поэтому получатель сверяет пару сам.
	Between(a, b UserID) bool
	isEvent()
}

type NewMessageEvent struct {
	MessageID  int64     `json:"message_id"`
	SenderID   UserID    `json:"sender_id"`
	ReceiverID UserID    `json:"receiver_id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type ReadReceiptEvent struct {
	MessageID int64     `json:"message_id"`
	SenderID  UserID    `json:"sender_id"`
	ReaderID  UserID    `json:"reader_id"`
	Reader    string    `json:"reader"`
	ReadAt    time.Time `json:"read_at"`
}

func (NewMessageEvent) Kind() EventKind  { return EventNewMessage }
func (ReadReceiptEvent) Kind() EventKind { return EventReadReceipt }

func (NewMessageEvent) isEvent()  {}
func (ReadReceiptEvent) isEvent() {}

func (e NewMessageEvent) Between(a, b UserID) bool {
	return samePair(e.SenderID, e.ReceiverID, a, b)
}

// receipt принадлежит паре отправителя сообщения и прочитавшего.
func (e ReadReceiptEvent) Between(a, b UserID) bool {
	return samePair(e.SenderID, e.ReaderID, a, b)
}

func samePair(x, y, a, b UserID) bool {
	return (x == a && y == b) || (x == b && y == a)
}
