package ws

import "github.com/amarket/chat-service/internal/domain"

// Входящий кадр клиента
type InboundFrame struct {
	Message string `json:"message"`
}

// Исходящие кадры. new_message уходит без поля type: клиенты различают
// кадры по наличию "type".
const (
	TypeReadReceipt = "read_receipt"
	TypeError       = "error"
)

type NewMessageFrame struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Message   string `json:"message"`
	MessageID int64  `json:"message_id"`
}

type ReadReceiptFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Reader    string `json:"reader"`
}

// ErrorFrame получает только отправитель; соединение остаётся открытым.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func frameFor(ev domain.Event) any {
	switch e := ev.(type) {
	case domain.NewMessageEvent:
		return NewMessageFrame{
			Sender:    e.Sender,
			Receiver:  e.Receiver,
			Message:   e.Content,
			MessageID: e.MessageID,
		}
	case domain.ReadReceiptEvent:
		return ReadReceiptFrame{
			Type:      TypeReadReceipt,
			MessageID: e.MessageID,
			Reader:    e.Reader,
		}
	default:
		return nil
	}
}

func errorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Error: msg}
}
