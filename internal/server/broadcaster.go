package server

import (
	"log"

	"github.com/alumnihub/messaging/internal/database"
	"github.com/alumnihub/messaging/internal/types"
)

// PublicBroadcaster owns the single global topic: it validates against
// the lock state, persists, then fans the message out to every live
// session. Persistence always happens before fan-out, so no client
// sees a message it could not also fetch from history.
type PublicBroadcaster struct {
	db       database.MessagingRepository
	lock     *LockController
	presence *PresenceRegistry
	log      *log.Logger
}

func NewPublicBroadcaster(logger *log.Logger, db database.MessagingRepository, lock *LockController, presence *PresenceRegistry) *PublicBroadcaster {
	return &PublicBroadcaster{
		db:       db,
		lock:     lock,
		presence: presence,
		log:      logger,
	}
}

// Broadcast persists a public message and pushes it to all sessions
// except skip (the originating session gets an explicit ack instead).
func (pb *PublicBroadcaster) Broadcast(sender types.User, content string, skip *Client) (types.PublicMessage, error) {
	if sender.Suspended {
		return types.PublicMessage{}, types.ErrUserSuspended
	}
	if pb.lock.IsLocked() {
		return types.PublicMessage{}, types.ErrMessagingLocked
	}
	if err := types.ValidateContent(content); err != nil {
		return types.PublicMessage{}, err
	}

	row, err := pb.db.AppendPublic(sender.Id, content)
	if err != nil {
		return types.PublicMessage{}, types.NewStorageError("append public message", err)
	}

	msg := types.PublicMessage{
		Id:         row.Id,
		SenderId:   row.SenderId,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt,
	}

	pb.fanOut(newEvent(EvReceivePublicMessage, msg), skip)
	return msg, nil
}

// Delete soft-deletes a public message on behalf of a moderator and
// pushes a retraction so clients can drop it without a reload.
func (pb *PublicBroadcaster) Delete(moderator types.User, messageId int) error {
	if !moderator.IsAdmin() {
		return types.NewAuthorizationError("delete public message")
	}

	ok, err := pb.db.SoftDeletePublic(messageId, moderator.Id)
	if err != nil {
		return types.NewStorageError("delete public message", err)
	}
	if !ok {
		return types.ErrNotFound
	}

	pb.fanOut(newEvent(EvMessageDeletedPublic, map[string]any{
		"message_id": messageId,
		"deleted_by": moderator.Id,
	}), nil)

	return nil
}

func (pb *PublicBroadcaster) fanOut(ev *ServerEvent, skip *Client) {
	for _, c := range pb.presence.Sessions() {
		if c == skip {
			continue
		}

		if !c.queueEvent(ev) {
			pb.log.Printf("dropping %s push for session %s, send buffer full", ev.Kind, c.sessionId)
		}
	}
}
