package database

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alumnihub/messaging/internal/types"
)

// MemMessagingRepository is an in-memory MessagingRepository with the
// same visibility and authorization semantics as the Postgres
// implementation. It backs tests that assert on stored state rather
// than on which calls were made.
type MemMessagingRepository struct {
	mu sync.Mutex

	users    []User
	public   []PublicMessage
	private  []PrivateMessage
	convs    []Conversation
	lock     MessagingLock
	nextUser int
	nextPub  int
	nextPriv int
	nextConv int
}

func NewMemMessagingRepository() *MemMessagingRepository {
	return &MemMessagingRepository{
		nextUser: 1,
		nextPub:  1,
		nextPriv: 1,
		nextConv: 1,
	}
}

func (m *MemMessagingRepository) Ping() error { return nil }

func (m *MemMessagingRepository) CreateAccount(params CreateAccountParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	u := User{
		Id:           m.nextUser,
		Name:         params.Name,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.nextUser++
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemMessagingRepository) GetAccountById(userId int) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Id == userId {
			return u, nil
		}
	}
	return User{}, sql.ErrNoRows
}

func (m *MemMessagingRepository) GetAccountByEmail(email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.EmailAddress == email {
			return u, nil
		}
	}
	return User{}, sql.ErrNoRows
}

func (m *MemMessagingRepository) userName(userId int) (string, string) {
	for _, u := range m.users {
		if u.Id == userId {
			return u.Name, u.Role
		}
	}
	return "", ""
}

func (m *MemMessagingRepository) AppendPublic(senderId int, content string) (PublicMessage, error) {
	if err := types.ValidateContent(content); err != nil {
		return PublicMessage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	msg := PublicMessage{
		Id:        m.nextPub,
		SenderId:  senderId,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.nextPub++
	m.public = append(m.public, msg)
	return msg, nil
}

func (m *MemMessagingRepository) ListPublic(limit, offset int, includeHidden bool) ([]PublicMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]PublicMessage, 0, limit)
	for _, msg := range m.public {
		if msg.DeletedBy.Valid {
			continue
		}
		if msg.IsHidden && !includeHidden {
			continue
		}
		msg.SenderName, msg.SenderRole = m.userName(msg.SenderId)
		matches = append(matches, msg)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Id > matches[j].Id })

	if offset >= len(matches) {
		return []PublicMessage{}, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemMessagingRepository) SoftDeletePublic(messageId, moderatorId int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.public {
		if m.public[i].Id == messageId && !m.public[i].DeletedBy.Valid {
			m.public[i].DeletedBy = sql.NullInt64{Int64: int64(moderatorId), Valid: true}
			m.public[i].UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

// SetHiddenAll mirrors the Postgres predicate: rows a moderator
// deleted are never toggled.
func (m *MemMessagingRepository) SetHiddenAll(hidden bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for i := range m.public {
		if m.public[i].IsHidden != hidden && !m.public[i].DeletedBy.Valid {
			m.public[i].IsHidden = hidden
			n++
		}
	}
	return n, nil
}

func (m *MemMessagingRepository) AppendPrivate(senderId, receiverId int, content string) (PrivateMessage, error) {
	if err := types.ValidateContent(content); err != nil {
		return PrivateMessage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	msg := PrivateMessage{
		Id:         m.nextPriv,
		SenderId:   senderId,
		ReceiverId: receiverId,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.nextPriv++
	m.private = append(m.private, msg)
	return msg, nil
}

func (m *MemMessagingRepository) GetPrivateMessage(messageId int) (PrivateMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.private {
		if msg.Id == messageId {
			return msg, nil
		}
	}
	return PrivateMessage{}, types.ErrNotFound
}

func (m *MemMessagingRepository) ListConversation(callerId, otherUserId, limit, offset int) ([]PrivateMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]PrivateMessage, 0, limit)
	for _, msg := range m.private {
		visible := (msg.SenderId == callerId && msg.ReceiverId == otherUserId && !msg.DeletedBySender) ||
			(msg.SenderId == otherUserId && msg.ReceiverId == callerId && !msg.DeletedByReceiver)
		if !visible {
			continue
		}
		msg.SenderName, _ = m.userName(msg.SenderId)
		matches = append(matches, msg)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Id < matches[j].Id })

	if offset >= len(matches) {
		return []PrivateMessage{}, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// MarkRead succeeds only for the receiver of an unread message.
func (m *MemMessagingRepository) MarkRead(messageId, readerId int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.private {
		msg := &m.private[i]
		if msg.Id == messageId && msg.ReceiverId == readerId && !msg.IsRead {
			now := time.Now().UTC()
			msg.IsRead = true
			msg.ReadAt = sql.NullTime{Time: now, Valid: true}
			msg.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (m *MemMessagingRepository) MarkConversationRead(otherUserId, readerId int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	now := time.Now().UTC()
	for i := range m.private {
		msg := &m.private[i]
		if msg.SenderId == otherUserId && msg.ReceiverId == readerId && !msg.IsRead {
			msg.IsRead = true
			msg.ReadAt = sql.NullTime{Time: now, Valid: true}
			msg.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemMessagingRepository) SoftDeletePrivate(messageId, actingUserId int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.private {
		msg := &m.private[i]
		if msg.Id != messageId {
			continue
		}
		switch actingUserId {
		case msg.SenderId:
			msg.DeletedBySender = true
		case msg.ReceiverId:
			msg.DeletedByReceiver = true
		default:
			return false, nil
		}
		msg.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	return false, nil
}

func (m *MemMessagingRepository) EnsureConversation(userA, userB int) (Conversation, error) {
	u1, u2 := min(userA, userB), max(userA, userB)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.convs {
		if c.UserId1 == u1 && c.UserId2 == u2 {
			return c, nil
		}
	}

	conv := Conversation{
		Id:        m.nextConv,
		UserId1:   u1,
		UserId2:   u2,
		CreatedAt: time.Now().UTC(),
	}
	m.nextConv++
	m.convs = append(m.convs, conv)
	return conv, nil
}

func (m *MemMessagingRepository) TouchConversation(userA, userB, lastMessageId int) error {
	u1, u2 := min(userA, userB), max(userA, userB)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.convs {
		if m.convs[i].UserId1 == u1 && m.convs[i].UserId2 == u2 {
			m.convs[i].LastMessageId = sql.NullInt64{Int64: int64(lastMessageId), Valid: true}
			m.convs[i].LastMessageAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
			return nil
		}
	}
	return nil
}

func (m *MemMessagingRepository) ListConversationSummaries(userId int) ([]ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []ConversationSummary
	for _, c := range m.convs {
		var otherId int
		switch userId {
		case c.UserId1:
			otherId = c.UserId2
		case c.UserId2:
			otherId = c.UserId1
		default:
			continue
		}

		s := ConversationSummary{
			OtherUserId:   otherId,
			LastMessageAt: c.LastMessageAt,
		}
		s.OtherUserName, s.OtherUserRole = m.userName(otherId)

		if c.LastMessageId.Valid {
			for _, msg := range m.private {
				if msg.Id == int(c.LastMessageId.Int64) {
					s.LastMessage = sql.NullString{String: msg.Content, Valid: true}
					break
				}
			}
		}

		for _, msg := range m.private {
			if msg.SenderId == otherId && msg.ReceiverId == userId && !msg.IsRead && !msg.DeletedByReceiver {
				s.UnreadCount++
			}
		}

		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.Time.After(summaries[j].LastMessageAt.Time)
	})
	return summaries, nil
}

func (m *MemMessagingRepository) GetLock() (MessagingLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lock, nil
}

func (m *MemMessagingRepository) SetLock(lock MessagingLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lock = lock
	return nil
}

func (m *MemMessagingRepository) SearchMessages(query string, userId int, messageType string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(query)

	m.mu.Lock()
	defer m.mu.Unlock()

	var results []SearchResult

	if messageType == "public" || messageType == "all" {
		for _, msg := range m.public {
			if msg.IsHidden || msg.DeletedBy.Valid {
				continue
			}
			name, _ := m.userName(msg.SenderId)
			if !strings.Contains(strings.ToLower(msg.Content), needle) &&
				!strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			results = append(results, SearchResult{
				Type:       "public",
				Id:         msg.Id,
				SenderId:   msg.SenderId,
				SenderName: name,
				Content:    msg.Content,
				CreatedAt:  msg.CreatedAt,
			})
		}
	}

	if messageType == "private" || messageType == "all" {
		for _, msg := range m.private {
			involved := (msg.SenderId == userId && !msg.DeletedBySender) ||
				(msg.ReceiverId == userId && !msg.DeletedByReceiver)
			if !involved {
				continue
			}
			name, _ := m.userName(msg.SenderId)
			if !strings.Contains(strings.ToLower(msg.Content), needle) &&
				!strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			results = append(results, SearchResult{
				Type:       "private",
				Id:         msg.Id,
				SenderId:   msg.SenderId,
				SenderName: name,
				ReceiverId: msg.ReceiverId,
				Content:    msg.Content,
				CreatedAt:  msg.CreatedAt,
			})
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemMessagingRepository) GetMessagingStats() (int, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var publicCount int
	for _, msg := range m.public {
		if !msg.DeletedBy.Valid {
			publicCount++
		}
	}
	return publicCount, len(m.private), len(m.convs), nil
}
