package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/alumnihub/messaging/internal/types"
)

// Client-originated event kinds.
const (
	EvSendPublicMessage    = "send_public_message"
	EvDeletePublicMessage  = "delete_public_message"
	EvLockMessaging        = "lock_messaging"
	EvUnlockMessaging      = "unlock_messaging"
	EvSendPrivateMessage   = "send_private_message"
	EvMarkMessageRead      = "mark_message_read"
	EvMarkConversationRead = "mark_conversation_read"
	EvDeletePrivateMessage = "delete_private_message"
	EvTypingPublic         = "typing_public"
	EvTypingPrivate        = "typing_private"
	EvStopTypingPublic     = "stop_typing_public"
	EvStopTypingPrivate    = "stop_typing_private"
	EvGetOnlineUsers       = "get_online_users"
	EvRefreshLockStatus    = "refresh_lock_status"
)

// Server-pushed event kinds.
const (
	EvReceivePublicMessage  = "receive_public_message"
	EvReceivePrivateMessage = "receive_private_message"
	EvMessageSent           = "message_sent"
	EvMessageDeletedPublic  = "message_deleted_public"
	EvMessageDeletedPrivate = "message_deleted_private"
	EvSystemLocked          = "system_locked"
	EvSystemUnlocked        = "system_unlocked"
	EvMessageRead           = "message_read"
	EvConversationRead      = "conversation_read"
	EvUserOnline            = "user_online"
	EvUserOffline           = "user_offline"
	EvUserTypingPublic      = "user_typing_public"
	EvUserTypingPrivate     = "user_typing_private"
	EvUserStoppedTypingPub  = "user_stopped_typing_public"
	EvUserStoppedTypingPriv = "user_stopped_typing_private"
	EvOnlineUsers           = "online_users"
	EvLockStatus            = "lock_status"
	EvError                 = "error"
)

// Error codes carried on error events so clients can distinguish a
// locked channel from plain validation failures.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeLocked       = "locked"
	CodeSuspended    = "suspended"
	CodeStorage      = "storage"
	CodeNotFound     = "not_found"
	CodeBadEvent     = "bad_event"
)

// ClientEvent is the inbound envelope. Id is a client-chosen sequence
// number echoed back on direct replies.
type ClientEvent struct {
	Id   int             `json:"id,omitempty"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`

	client *Client
}

type PublicMessagePayload struct {
	Content string `json:"content"`
}

type DeletePublicPayload struct {
	MessageId int `json:"message_id"`
}

type LockPayload struct {
	Reason string `json:"reason,omitempty"`
}

type PrivateMessagePayload struct {
	ReceiverId int    `json:"receiver_id"`
	Content    string `json:"content"`
}

type MarkReadPayload struct {
	MessageId int `json:"message_id"`
}

type MarkConversationReadPayload struct {
	OtherUserId int `json:"other_user_id"`
}

type DeletePrivatePayload struct {
	MessageId int `json:"message_id"`
}

type TypingPayload struct {
	ReceiverId int `json:"receiver_id,omitempty"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Id        int       `json:"id,omitempty"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func newEvent(kind string, data any) *ServerEvent {
	return &ServerEvent{
		Kind:      kind,
		Timestamp: Now(),
		Data:      data,
	}
}

func newReply(id int, kind string, data any) *ServerEvent {
	ev := newEvent(kind, data)
	ev.Id = id
	return ev
}

func newErrEvent(id int, code, msg string) *ServerEvent {
	return &ServerEvent{
		Id:        id,
		Kind:      EvError,
		Timestamp: Now(),
		Code:      code,
		Error:     msg,
	}
}

// errResponse maps a domain error to the error event a client sees.
func errResponse(id int, err error) *ServerEvent {
	var valErr *types.ValidationError
	var authErr *types.AuthorizationError
	var storeErr *types.StorageError

	switch {
	case errors.Is(err, types.ErrMessagingLocked):
		return newErrEvent(id, CodeLocked, err.Error())
	case errors.Is(err, types.ErrUserSuspended):
		return newErrEvent(id, CodeSuspended, err.Error())
	case errors.Is(err, types.ErrSelfMessage):
		return newErrEvent(id, CodeValidation, err.Error())
	case errors.Is(err, types.ErrNotFound):
		return newErrEvent(id, CodeNotFound, err.Error())
	case errors.As(err, &valErr):
		return newErrEvent(id, CodeValidation, valErr.Error())
	case errors.As(err, &authErr):
		return newErrEvent(id, CodeUnauthorized, authErr.Error())
	case errors.As(err, &storeErr):
		return newErrEvent(id, CodeStorage, "temporary failure, please retry")
	default:
		return newErrEvent(id, CodeStorage, "temporary failure, please retry")
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
