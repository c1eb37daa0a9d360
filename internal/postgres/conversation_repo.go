package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type ConversationRepository struct {
	db TxBeginner
}

func NewConversationRepository(db TxBeginner) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Get возвращает диалог пары или domain.ErrConversationNotFound.
func (r *ConversationRepository) Get(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	low, high := domain.CanonicalPair(a, b)
	return scanConversation(r.db.QueryRow(ctx, queryConversationByPair, low, high))
}

// GetOrCreate — идемпотентное создание диалога пары.
// При гонке двух участников проигравший INSERT ловит 23505 и перечитывает строку победителя.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, a, b domain.UserID) (*domain.Conversation, bool, error) {
	if a == b {
		return nil, false, domain.ErrSelfConversation
	}
	low, high := domain.CanonicalPair(a, b)

	c, err := scanConversation(r.db.QueryRow(ctx, queryConversationByPair, low, high))
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, false, err
	}

	c, err = scanConversation(r.db.QueryRow(ctx, queryInsertConversation, low, high))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}

	c, err = scanConversation(r.db.QueryRow(ctx, queryConversationByPair, low, high))
	if err != nil {
		return nil, false, fmt.Errorf("reread conversation after conflict: %w", err)
	}
	return c, false, nil
}

// Delete удаляет диалог и все его сообщения в одной транзакции.
func (r *ConversationRepository) Delete(ctx context.Context, a, b domain.UserID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	low, high := domain.CanonicalPair(a, b)
	c, err := scanConversation(tx.QueryRow(ctx, queryConversationByPair+" FOR UPDATE", low, high))
	if err != nil {
		return err
	}
	// каскад в схеме тоже есть, но сообщения удаляем явно
	if _, err := tx.Exec(ctx, queryDeleteConversationMessages, c.ID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, queryDeleteConversation, c.ID); err != nil {
		return mapPgError(err)
	}

	return tx.Commit(ctx)
}

// ListForUser — все диалоги пользователя с последним сообщением, свежие сверху.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID domain.UserID) ([]domain.ConversationSummary, error) {
	rows, err := r.db.Query(ctx, queryConversationsForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ConversationSummary, 0, 16)
	for rows.Next() {
		var (
			s domain.ConversationSummary

			lmID        *int64
			lmSender    *int64
			lmReceiver  *int64
			lmContent   *string
			lmCreatedAt *time.Time
			lmIsRead    *bool
			lmReadAt    *time.Time
		)
		if err := rows.Scan(
			&s.Conversation.ID, &s.Conversation.UserLow, &s.Conversation.UserHigh, &s.Conversation.CreatedAt,
			&s.Peer.ID, &s.Peer.Username,
			&lmID, &lmSender, &lmReceiver, &lmContent, &lmCreatedAt, &lmIsRead, &lmReadAt,
			&s.UnreadCount,
		); err != nil {
			return nil, err
		}
		if lmID != nil {
			s.LastMessage = &domain.Message{
				ID:             *lmID,
				ConversationID: s.Conversation.ID,
				SenderID:       domain.UserID(*lmSender),
				ReceiverID:     domain.UserID(*lmReceiver),
				Content:        *lmContent,
				CreatedAt:      *lmCreatedAt,
				IsRead:         *lmIsRead,
				ReadAt:         lmReadAt,
			}
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, mapPgError(err)
	}
	return &c, nil
}
