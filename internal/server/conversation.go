package server

import (
	"log"
	"sync"

	"github.com/alumnihub/messaging/internal/database"
	"github.com/alumnihub/messaging/internal/types"
)

// pairKey is the canonical identity of an unordered user pair.
type pairKey struct {
	a, b int
}

func canonicalPair(userA, userB int) pairKey {
	if userA > userB {
		userA, userB = userB, userA
	}
	return pairKey{a: userA, b: userB}
}

// ConversationRouter resolves a (sender, receiver) pair to its
// conversation and serializes writes per pair, so two near-simultaneous
// messages between the same two users land in a single total order.
// Different pairs are independent and interleave freely.
type ConversationRouter struct {
	db  database.MessagingRepository
	log *log.Logger

	mu        sync.Mutex
	pairLocks map[pairKey]*sync.Mutex
}

func NewConversationRouter(logger *log.Logger, db database.MessagingRepository) *ConversationRouter {
	return &ConversationRouter{
		db:        db,
		log:       logger,
		pairLocks: make(map[pairKey]*sync.Mutex),
	}
}

func (cr *ConversationRouter) pairLock(key pairKey) *sync.Mutex {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	l, ok := cr.pairLocks[key]
	if !ok {
		l = &sync.Mutex{}
		cr.pairLocks[key] = l
	}
	return l
}

// Ensure creates the conversation record for the pair if absent and
// returns it. Ensure(a, b) and Ensure(b, a) resolve identically.
func (cr *ConversationRouter) Ensure(userA, userB int) (types.Conversation, error) {
	key := canonicalPair(userA, userB)

	conv, err := cr.db.EnsureConversation(key.a, key.b)
	if err != nil {
		return types.Conversation{}, types.NewStorageError("ensure conversation", err)
	}

	c := types.Conversation{
		Id:        conv.Id,
		UserId1:   conv.UserId1,
		UserId2:   conv.UserId2,
		CreatedAt: conv.CreatedAt,
	}
	if conv.LastMessageId.Valid {
		c.LastMessageId = int(conv.LastMessageId.Int64)
	}
	if conv.LastMessageAt.Valid {
		c.LastMessageAt = conv.LastMessageAt.Time
	}
	return c, nil
}

// Route validates, persists and records a private message as one
// logical unit. The pair lock is held across the append and the
// conversation upsert so persisted order matches id order.
func (cr *ConversationRouter) Route(sender types.User, receiverId int, content string) (types.PrivateMessage, error) {
	if sender.Id == receiverId {
		return types.PrivateMessage{}, types.ErrSelfMessage
	}
	if sender.Suspended {
		return types.PrivateMessage{}, types.ErrUserSuspended
	}
	if err := types.ValidateContent(content); err != nil {
		return types.PrivateMessage{}, err
	}

	key := canonicalPair(sender.Id, receiverId)
	l := cr.pairLock(key)
	l.Lock()
	defer l.Unlock()

	msg, err := cr.db.AppendPrivate(sender.Id, receiverId, content)
	if err != nil {
		return types.PrivateMessage{}, types.NewStorageError("append private message", err)
	}

	if _, err := cr.db.EnsureConversation(key.a, key.b); err != nil {
		return types.PrivateMessage{}, types.NewStorageError("ensure conversation", err)
	}
	if err := cr.db.TouchConversation(key.a, key.b, msg.Id); err != nil {
		return types.PrivateMessage{}, types.NewStorageError("update conversation", err)
	}

	return types.PrivateMessage{
		Id:         msg.Id,
		SenderId:   msg.SenderId,
		SenderName: sender.Name,
		ReceiverId: msg.ReceiverId,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
		UpdatedAt:  msg.UpdatedAt,
	}, nil
}
