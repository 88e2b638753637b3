package database

import (
	"github.com/stretchr/testify/mock"
)

type MockMessagingRepository struct {
	mock.Mock
}

func (m *MockMessagingRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessagingRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) GetAccountById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) AppendPublic(senderId int, content string) (PublicMessage, error) {
	args := m.Called(senderId, content)
	return args.Get(0).(PublicMessage), args.Error(1)
}
func (m *MockMessagingRepository) ListPublic(limit, offset int, includeHidden bool) ([]PublicMessage, error) {
	args := m.Called(limit, offset, includeHidden)
	return args.Get(0).([]PublicMessage), args.Error(1)
}
func (m *MockMessagingRepository) SoftDeletePublic(messageId, moderatorId int) (bool, error) {
	args := m.Called(messageId, moderatorId)
	return args.Bool(0), args.Error(1)
}
func (m *MockMessagingRepository) SetHiddenAll(hidden bool) (int, error) {
	args := m.Called(hidden)
	return args.Int(0), args.Error(1)
}
func (m *MockMessagingRepository) AppendPrivate(senderId, receiverId int, content string) (PrivateMessage, error) {
	args := m.Called(senderId, receiverId, content)
	return args.Get(0).(PrivateMessage), args.Error(1)
}
func (m *MockMessagingRepository) GetPrivateMessage(messageId int) (PrivateMessage, error) {
	args := m.Called(messageId)
	return args.Get(0).(PrivateMessage), args.Error(1)
}
func (m *MockMessagingRepository) ListConversation(callerId, otherUserId, limit, offset int) ([]PrivateMessage, error) {
	args := m.Called(callerId, otherUserId, limit, offset)
	return args.Get(0).([]PrivateMessage), args.Error(1)
}
func (m *MockMessagingRepository) MarkRead(messageId, readerId int) (bool, error) {
	args := m.Called(messageId, readerId)
	return args.Bool(0), args.Error(1)
}
func (m *MockMessagingRepository) MarkConversationRead(otherUserId, readerId int) (int, error) {
	args := m.Called(otherUserId, readerId)
	return args.Int(0), args.Error(1)
}
func (m *MockMessagingRepository) SoftDeletePrivate(messageId, actingUserId int) (bool, error) {
	args := m.Called(messageId, actingUserId)
	return args.Bool(0), args.Error(1)
}
func (m *MockMessagingRepository) EnsureConversation(userA, userB int) (Conversation, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessagingRepository) TouchConversation(userA, userB, lastMessageId int) error {
	args := m.Called(userA, userB, lastMessageId)
	return args.Error(0)
}
func (m *MockMessagingRepository) ListConversationSummaries(userId int) ([]ConversationSummary, error) {
	args := m.Called(userId)
	return args.Get(0).([]ConversationSummary), args.Error(1)
}
func (m *MockMessagingRepository) GetLock() (MessagingLock, error) {
	args := m.Called()
	return args.Get(0).(MessagingLock), args.Error(1)
}
func (m *MockMessagingRepository) SetLock(lock MessagingLock) error {
	args := m.Called(lock)
	return args.Error(0)
}
func (m *MockMessagingRepository) SearchMessages(query string, userId int, messageType string, limit int) ([]SearchResult, error) {
	args := m.Called(query, userId, messageType, limit)
	return args.Get(0).([]SearchResult), args.Error(1)
}
func (m *MockMessagingRepository) GetMessagingStats() (int, int, int, error) {
	args := m.Called()
	return args.Int(0), args.Int(1), args.Int(2), args.Error(3)
}
