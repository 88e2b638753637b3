package types

import (
	"time"
)

const (
	// RoleAdmin marks users allowed to lock messaging and delete
	// public messages.
	RoleAdmin = "admin"

	// MaxContentLength is the maximum number of characters in a
	// public or private message.
	MaxContentLength = 5000
)

type User struct {
	Id           int       `json:"id"`
	Name         string    `json:"name"`
	EmailAddress string    `json:"email_address,omitempty"`
	Role         string    `json:"role"`
	Suspended    bool      `json:"suspended,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type PublicMessage struct {
	Id         int       `json:"id"`
	SenderId   int       `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	SenderRole string    `json:"sender_role,omitempty"`
	Content    string    `json:"content"`
	IsHidden   bool      `json:"is_hidden"`
	DeletedBy  int       `json:"deleted_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type PrivateMessage struct {
	Id         int        `json:"id"`
	SenderId   int        `json:"sender_id"`
	SenderName string     `json:"sender_name,omitempty"`
	ReceiverId int        `json:"receiver_id"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
}

// Conversation is the denormalized record for an unordered user pair.
// UserId1 is always the smaller of the two ids.
type Conversation struct {
	Id            int       `json:"id"`
	UserId1       int       `json:"user_id_1"`
	UserId2       int       `json:"user_id_2"`
	LastMessageId int       `json:"last_message_id,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// ConversationSummary is one row of a user's inbox: the other party,
// the last message and the number of unread messages from them.
type ConversationSummary struct {
	OtherUserId   int       `json:"other_user_id"`
	OtherUserName string    `json:"other_user_name"`
	OtherUserRole string    `json:"other_user_role,omitempty"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int       `json:"unread_count"`
}

type LockStatus struct {
	IsLocked bool       `json:"is_locked"`
	LockedBy int        `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

type MessagingStats struct {
	TotalPublicMessages  int        `json:"total_public_messages"`
	TotalPrivateMessages int        `json:"total_private_messages"`
	TotalConversations   int        `json:"total_conversations"`
	SystemLocked         bool       `json:"system_locked"`
	LockedBy             int        `json:"locked_by,omitempty"`
	LockedAt             *time.Time `json:"locked_at,omitempty"`
}

// SearchResult is a single hit from content search. Type is either
// "public" or "private".
type SearchResult struct {
	Type       string    `json:"type"`
	Id         int       `json:"id"`
	SenderId   int       `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	ReceiverId int       `json:"receiver_id,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// OnlineUser is an entry in the presence registry.
type OnlineUser struct {
	UserId      int       `json:"user_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}
