package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/alumnihub/messaging/internal/types"
)

func (db *PgMessagingRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (name, email, password_hash, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, name, email, role, suspended, created_at, updated_at",
		params.Name,
		params.EmailAddress,
		params.PasswordHash,
		params.Role,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.Role,
		&u.Suspended,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgMessagingRepository) GetAccountById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, role, suspended, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.Role,
		&u.Suspended,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgMessagingRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, password_hash, role, suspended, created_at, updated_at FROM users "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Role,
		&u.Suspended,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgMessagingRepository) AppendPublic(senderId int, content string) (PublicMessage, error) {
	if err := types.ValidateContent(content); err != nil {
		return PublicMessage{}, err
	}

	res := db.conn.QueryRow(
		"INSERT INTO public_messages (sender_id, content, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, sender_id, content, is_hidden, created_at, updated_at",
		senderId,
		content,
		time.Now().UTC(),
	)

	var msg PublicMessage
	err := res.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.Content,
		&msg.IsHidden,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)

	return msg, err
}

func (db *PgMessagingRepository) ListPublic(limit, offset int, includeHidden bool) ([]PublicMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT pm.id, pm.sender_id, u.name, u.role, pm.content, pm.is_hidden, pm.created_at, pm.updated_at " +
		"FROM public_messages pm JOIN users u ON pm.sender_id = u.id " +
		"WHERE pm.deleted_by IS NULL"
	if !includeHidden {
		query += " AND NOT pm.is_hidden"
	}
	query += " ORDER BY pm.id DESC LIMIT $1 OFFSET $2"

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]PublicMessage, 0, limit)
	for rows.Next() {
		var msg PublicMessage
		if err = rows.Scan(
			&msg.Id,
			&msg.SenderId,
			&msg.SenderName,
			&msg.SenderRole,
			&msg.Content,
			&msg.IsHidden,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgMessagingRepository) SoftDeletePublic(messageId, moderatorId int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE public_messages SET deleted_by = $2, updated_at = $3 "+
			"WHERE id = $1 AND deleted_by IS NULL",
		messageId,
		moderatorId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// SetHiddenAll bulk-toggles visibility for the lock transitions. Rows
// a moderator deleted are never touched.
func (db *PgMessagingRepository) SetHiddenAll(hidden bool) (int, error) {
	res, err := db.conn.Exec(
		"UPDATE public_messages SET is_hidden = $1 "+
			"WHERE is_hidden = $2 AND deleted_by IS NULL",
		hidden,
		!hidden,
	)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (db *PgMessagingRepository) AppendPrivate(senderId, receiverId int, content string) (PrivateMessage, error) {
	if err := types.ValidateContent(content); err != nil {
		return PrivateMessage{}, err
	}

	res := db.conn.QueryRow(
		"INSERT INTO private_messages (sender_id, receiver_id, content, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, sender_id, receiver_id, content, is_read, created_at, updated_at",
		senderId,
		receiverId,
		content,
		time.Now().UTC(),
	)

	var msg PrivateMessage
	err := res.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Content,
		&msg.IsRead,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)

	return msg, err
}

func (db *PgMessagingRepository) GetPrivateMessage(messageId int) (PrivateMessage, error) {
	row := db.conn.QueryRow(
		"SELECT id, sender_id, receiver_id, content, is_read, read_at, "+
			"deleted_by_sender, deleted_by_receiver, created_at, updated_at "+
			"FROM private_messages WHERE id = $1 LIMIT 1",
		messageId,
	)

	var msg PrivateMessage
	err := row.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Content,
		&msg.IsRead,
		&msg.ReadAt,
		&msg.DeletedBySender,
		&msg.DeletedByReceiver,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PrivateMessage{}, types.ErrNotFound
	}

	return msg, err
}

// ListConversation returns the messages between the caller and the
// other user that are still visible to the caller, oldest first.
func (db *PgMessagingRepository) ListConversation(callerId, otherUserId, limit, offset int) ([]PrivateMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT pm.id, pm.sender_id, u.name, pm.receiver_id, pm.content, pm.is_read, pm.read_at, pm.created_at, pm.updated_at "+
			"FROM private_messages pm JOIN users u ON pm.sender_id = u.id "+
			"WHERE ((pm.sender_id = $1 AND pm.receiver_id = $2 AND NOT pm.deleted_by_sender) "+
			"OR (pm.sender_id = $2 AND pm.receiver_id = $1 AND NOT pm.deleted_by_receiver)) "+
			"ORDER BY pm.id ASC LIMIT $3 OFFSET $4",
		callerId,
		otherUserId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]PrivateMessage, 0, limit)
	for rows.Next() {
		var msg PrivateMessage
		if err = rows.Scan(
			&msg.Id,
			&msg.SenderId,
			&msg.SenderName,
			&msg.ReceiverId,
			&msg.Content,
			&msg.IsRead,
			&msg.ReadAt,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

// MarkRead succeeds only when readerId is the message's receiver; the
// authorization lives in the update predicate.
func (db *PgMessagingRepository) MarkRead(messageId, readerId int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE private_messages SET is_read = TRUE, read_at = $3, updated_at = $3 "+
			"WHERE id = $1 AND receiver_id = $2 AND NOT is_read",
		messageId,
		readerId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgMessagingRepository) MarkConversationRead(otherUserId, readerId int) (int, error) {
	res, err := db.conn.Exec(
		"UPDATE private_messages SET is_read = TRUE, read_at = $3, updated_at = $3 "+
			"WHERE sender_id = $1 AND receiver_id = $2 AND NOT is_read",
		otherUserId,
		readerId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// SoftDeletePrivate sets the delete flag for whichever side the caller
// is on. The two flags are independent.
func (db *PgMessagingRepository) SoftDeletePrivate(messageId, actingUserId int) (bool, error) {
	msg, err := db.GetPrivateMessage(messageId)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	var query string
	switch actingUserId {
	case msg.SenderId:
		query = "UPDATE private_messages SET deleted_by_sender = TRUE, updated_at = $2 WHERE id = $1"
	case msg.ReceiverId:
		query = "UPDATE private_messages SET deleted_by_receiver = TRUE, updated_at = $2 WHERE id = $1"
	default:
		return false, nil
	}

	res, err := db.conn.Exec(query, messageId, time.Now().UTC())
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgMessagingRepository) EnsureConversation(userA, userB int) (Conversation, error) {
	u1, u2 := min(userA, userB), max(userA, userB)

	_, err := db.conn.Exec(
		"INSERT INTO conversations (user_id_1, user_id_2, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (user_id_1, user_id_2) DO NOTHING",
		u1,
		u2,
		time.Now().UTC(),
	)
	if err != nil {
		return Conversation{}, err
	}

	row := db.conn.QueryRow(
		"SELECT id, user_id_1, user_id_2, last_message_id, last_message_at, created_at "+
			"FROM conversations WHERE user_id_1 = $1 AND user_id_2 = $2 LIMIT 1",
		u1,
		u2,
	)

	var conv Conversation
	err = row.Scan(
		&conv.Id,
		&conv.UserId1,
		&conv.UserId2,
		&conv.LastMessageId,
		&conv.LastMessageAt,
		&conv.CreatedAt,
	)

	return conv, err
}

func (db *PgMessagingRepository) TouchConversation(userA, userB, lastMessageId int) error {
	u1, u2 := min(userA, userB), max(userA, userB)

	_, err := db.conn.Exec(
		"UPDATE conversations SET last_message_id = $3, last_message_at = $4 "+
			"WHERE user_id_1 = $1 AND user_id_2 = $2",
		u1,
		u2,
		lastMessageId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgMessagingRepository) ListConversationSummaries(userId int) ([]ConversationSummary, error) {
	rows, err := db.conn.Query(
		`SELECT
			CASE WHEN c.user_id_1 = $1 THEN c.user_id_2 ELSE c.user_id_1 END AS other_user_id,
			u.name,
			u.role,
			pm.content AS last_message,
			c.last_message_at,
			(SELECT COUNT(*) FROM private_messages
				WHERE receiver_id = $1 AND NOT is_read AND NOT deleted_by_receiver
				AND sender_id = CASE WHEN c.user_id_1 = $1 THEN c.user_id_2 ELSE c.user_id_1 END
			) AS unread_count
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.user_id_1 = $1 THEN c.user_id_2 ELSE c.user_id_1 END
		LEFT JOIN private_messages pm ON pm.id = c.last_message_id
		WHERE c.user_id_1 = $1 OR c.user_id_2 = $1
		ORDER BY c.last_message_at DESC NULLS LAST`,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err = rows.Scan(
			&s.OtherUserId,
			&s.OtherUserName,
			&s.OtherUserRole,
			&s.LastMessage,
			&s.LastMessageAt,
			&s.UnreadCount,
		); err != nil {
			break
		}

		summaries = append(summaries, s)
	}

	return summaries, err
}

func (db *PgMessagingRepository) GetLock() (MessagingLock, error) {
	row := db.conn.QueryRow(
		"SELECT is_locked, locked_by, locked_at, reason FROM messaging_lock WHERE id = 1",
	)

	var lock MessagingLock
	err := row.Scan(
		&lock.IsLocked,
		&lock.LockedBy,
		&lock.LockedAt,
		&lock.Reason,
	)

	return lock, err
}

func (db *PgMessagingRepository) SetLock(lock MessagingLock) error {
	_, err := db.conn.Exec(
		"UPDATE messaging_lock SET is_locked = $1, locked_by = $2, locked_at = $3, reason = $4 WHERE id = 1",
		lock.IsLocked,
		lock.LockedBy,
		lock.LockedAt,
		lock.Reason,
	)

	return err
}

func (db *PgMessagingRepository) SearchMessages(query string, userId int, messageType string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	var results []SearchResult

	if messageType == "public" || messageType == "all" {
		rows, err := db.conn.Query(
			"SELECT pm.id, pm.sender_id, u.name, pm.content, pm.created_at "+
				"FROM public_messages pm JOIN users u ON pm.sender_id = u.id "+
				"WHERE (pm.content ILIKE $1 OR u.name ILIKE $1) "+
				"AND NOT pm.is_hidden AND pm.deleted_by IS NULL "+
				"ORDER BY pm.id DESC LIMIT $2",
			pattern,
			limit,
		)
		if err != nil {
			return nil, err
		}

		for rows.Next() {
			r := SearchResult{Type: "public"}
			if err = rows.Scan(&r.Id, &r.SenderId, &r.SenderName, &r.Content, &r.CreatedAt); err != nil {
				rows.Close()
				return nil, err
			}
			results = append(results, r)
		}
		rows.Close()
		if err = rows.Err(); err != nil {
			return nil, err
		}
	}

	if messageType == "private" || messageType == "all" {
		rows, err := db.conn.Query(
			"SELECT pm.id, pm.sender_id, u.name, pm.receiver_id, pm.content, pm.created_at "+
				"FROM private_messages pm JOIN users u ON pm.sender_id = u.id "+
				"WHERE (pm.sender_id = $1 AND NOT pm.deleted_by_sender "+
				"OR pm.receiver_id = $1 AND NOT pm.deleted_by_receiver) "+
				"AND (pm.content ILIKE $2 OR u.name ILIKE $2) "+
				"ORDER BY pm.id DESC LIMIT $3",
			userId,
			pattern,
			limit,
		)
		if err != nil {
			return nil, err
		}

		for rows.Next() {
			r := SearchResult{Type: "private"}
			if err = rows.Scan(&r.Id, &r.SenderId, &r.SenderName, &r.ReceiverId, &r.Content, &r.CreatedAt); err != nil {
				rows.Close()
				return nil, err
			}
			results = append(results, r)
		}
		rows.Close()
		if err = rows.Err(); err != nil {
			return nil, err
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func (db *PgMessagingRepository) GetMessagingStats() (int, int, int, error) {
	var publicCount, privateCount, conversationCount int

	row := db.conn.QueryRow("SELECT COUNT(*) FROM public_messages WHERE deleted_by IS NULL")
	if err := row.Scan(&publicCount); err != nil {
		return 0, 0, 0, err
	}

	row = db.conn.QueryRow("SELECT COUNT(*) FROM private_messages")
	if err := row.Scan(&privateCount); err != nil {
		return 0, 0, 0, err
	}

	row = db.conn.QueryRow("SELECT COUNT(*) FROM conversations")
	if err := row.Scan(&conversationCount); err != nil {
		return 0, 0, 0, err
	}

	return publicCount, privateCount, conversationCount, nil
}
