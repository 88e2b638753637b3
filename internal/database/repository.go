package database

// MessagingRepository is the durable store for users, public and
// private messages, conversations and the messaging lock row. Every
// append is atomic and returns a strictly increasing id.
type MessagingRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(userId int) (User, error)
	GetAccountByEmail(email string) (User, error)

	AppendPublic(senderId int, content string) (PublicMessage, error)
	ListPublic(limit, offset int, includeHidden bool) ([]PublicMessage, error)
	SoftDeletePublic(messageId, moderatorId int) (bool, error)
	SetHiddenAll(hidden bool) (int, error)

	AppendPrivate(senderId, receiverId int, content string) (PrivateMessage, error)
	GetPrivateMessage(messageId int) (PrivateMessage, error)
	ListConversation(callerId, otherUserId, limit, offset int) ([]PrivateMessage, error)
	MarkRead(messageId, readerId int) (bool, error)
	MarkConversationRead(otherUserId, readerId int) (int, error)
	SoftDeletePrivate(messageId, actingUserId int) (bool, error)

	EnsureConversation(userA, userB int) (Conversation, error)
	TouchConversation(userA, userB, lastMessageId int) error
	ListConversationSummaries(userId int) ([]ConversationSummary, error)

	GetLock() (MessagingLock, error)
	SetLock(lock MessagingLock) error

	SearchMessages(query string, userId int, messageType string, limit int) ([]SearchResult, error)
	GetMessagingStats() (publicCount, privateCount, conversationCount int, err error)
}
