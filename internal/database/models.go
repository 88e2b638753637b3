package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Name         string
	EmailAddress string
	PasswordHash string
	Role         string
	Suspended    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PublicMessage struct {
	Id         int
	SenderId   int
	SenderName string
	SenderRole string
	Content    string
	IsHidden   bool
	DeletedBy  sql.NullInt64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type PrivateMessage struct {
	Id                int
	SenderId          int
	SenderName        string
	ReceiverId        int
	Content           string
	IsRead            bool
	ReadAt            sql.NullTime
	DeletedBySender   bool
	DeletedByReceiver bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Conversation struct {
	Id            int
	UserId1       int
	UserId2       int
	LastMessageId sql.NullInt64
	LastMessageAt sql.NullTime
	CreatedAt     time.Time
}

type ConversationSummary struct {
	OtherUserId   int
	OtherUserName string
	OtherUserRole string
	LastMessage   sql.NullString
	LastMessageAt sql.NullTime
	UnreadCount   int
}

type MessagingLock struct {
	IsLocked bool
	LockedBy sql.NullInt64
	LockedAt sql.NullTime
	Reason   sql.NullString
}

type SearchResult struct {
	Type       string
	Id         int
	SenderId   int
	SenderName string
	ReceiverId int
	Content    string
	CreatedAt  time.Time
}

type CreateAccountParams struct {
	Name         string
	EmailAddress string
	PasswordHash string
	Role         string
}
