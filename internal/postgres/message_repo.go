package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	db Querier
}

func NewMessageRepository(db Querier) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create сохраняет сообщение; created_at и is_read=false ставит БД.
func (r *MessageRepository) Create(ctx context.Context, conversationID int64, sender, receiver domain.UserID, content string) (*domain.Message, error) {
	return scanMessage(r.db.QueryRow(ctx, queryInsertMessage, conversationID, sender, receiver, content))
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*domain.Message, error) {
	return scanMessage(r.db.QueryRow(ctx, queryMessageByID, id))
}

// MarkRead переводит сообщение в прочитанное, только если оно ещё не прочитано.
// Возвращает true, если переход случился именно этим вызовом.
func (r *MessageRepository) MarkRead(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, queryMarkRead, id)
	if err != nil {
		return false, mapPgError(err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, queryMessageExists, id).Scan(&exists); err != nil {
		return false, mapPgError(err)
	}
	if !exists {
		return false, domain.ErrMessageNotFound
	}
	return false, nil
}

// MarkAllRead — одним UPDATE помечает все непрочитанные sender -> receiver.
func (r *MessageRepository) MarkAllRead(ctx context.Context, sender, receiver domain.UserID) (int64, error) {
	tag, err := r.db.Exec(ctx, queryMarkAllRead, sender, receiver)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}

// ListBetween — сообщения пары от старых к новым, search — регистронезависимая подстрока.
func (r *MessageRepository) ListBetween(ctx context.Context, a, b domain.UserID, search string) ([]domain.Message, error) {
	low, high := domain.CanonicalPair(a, b)
	rows, err := r.db.Query(ctx, queryMessagesBetween, low, high, escapeLike(strings.TrimSpace(search)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Message, 0, 64)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.IsRead, &m.ReadAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, mapPgError(err)
	}
	return &m, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
