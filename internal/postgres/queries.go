package postgres

const (
	queryUserByID       = `SELECT id, username FROM users WHERE id = $1`
	queryUserByUsername = `SELECT id, username FROM users WHERE username = $1`

	queryConversationByPair = `
		SELECT id, user_low, user_high, created_at
		FROM chat_conversations
		WHERE user_low = $1 AND user_high = $2
	`
	queryInsertConversation = `
		INSERT INTO chat_conversations (user_low, user_high)
		VALUES ($1, $2)
		RETURNING id, user_low, user_high, created_at
	`
	queryDeleteConversation         = `DELETE FROM chat_conversations WHERE id = $1`
	queryDeleteConversationMessages = `DELETE FROM chat_messages WHERE conversation_id = $1`

	// последнее сообщение + число непрочитанных адресованных $1;
	// диалоги без сообщений идут в конце
	queryConversationsForUser = `
		SELECT c.id, c.user_low, c.user_high, c.created_at,
		       u.id, u.username,
		       lm.id, lm.sender_id, lm.receiver_id, lm.content, lm.created_at, lm.is_read, lm.read_at,
		       (SELECT COUNT(*) FROM chat_messages um
		         WHERE um.conversation_id = c.id AND um.receiver_id = $1 AND um.is_read = FALSE) AS unread
		FROM chat_conversations c
		JOIN users u ON u.id = CASE WHEN c.user_low = $1 THEN c.user_high ELSE c.user_low END
		LEFT JOIN LATERAL (
		    SELECT m.id, m.sender_id, m.receiver_id, m.content, m.created_at, m.is_read, m.read_at
		    FROM chat_messages m
		    WHERE m.conversation_id = c.id
		    ORDER BY m.created_at DESC, m.id DESC
		    LIMIT 1
		) lm ON TRUE
		WHERE c.user_low = $1 OR c.user_high = $1
		ORDER BY lm.created_at DESC NULLS LAST, lm.id DESC NULLS LAST, c.created_at DESC, c.id DESC
	`

	queryInsertMessage = `
		INSERT INTO chat_messages (conversation_id, sender_id, receiver_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, sender_id, receiver_id, content, created_at, is_read, read_at
	`
	queryMarkRead = `
		UPDATE chat_messages
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND is_read = FALSE
	`
	queryMessageExists = `SELECT EXISTS(SELECT 1 FROM chat_messages WHERE id = $1)`
	queryMarkAllRead   = `
		UPDATE chat_messages
		SET is_read = TRUE, read_at = now()
		WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`
	queryMessageByID = `
		SELECT id, conversation_id, sender_id, receiver_id, content, created_at, is_read, read_at
		FROM chat_messages
		WHERE id = $1
	`
	// $3 — подстрока для ILIKE, пустая строка = без фильтра
	queryMessagesBetween = `
		SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.created_at, m.is_read, m.read_at
		FROM chat_messages m
		JOIN chat_conversations c ON c.id = m.conversation_id
		WHERE c.user_low = $1 AND c.user_high = $2
		  AND ($3 = '' OR m.content ILIKE '%' || $3 || '%')
		ORDER BY m.created_at ASC, m.id ASC
	`
)
