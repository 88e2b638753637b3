package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/alumnihub/messaging/internal/database"
	"github.com/alumnihub/messaging/internal/stats"
	"github.com/alumnihub/messaging/internal/types"
)

const (
	MetricNumConnections      = "NumConnections"
	MetricNumOnlineUsers      = "NumOnlineUsers"
	MetricPublicMessagesSent  = "PublicMessagesSent"
	MetricPrivateMessagesSent = "PrivateMessagesSent"
)

// ChatServer is the event gateway: every client-originated event is
// authenticated upstream, then dispatched here through a single table
// mapping event kind to handler. Handlers run on the connection's
// read goroutine; all shared state lives behind the presence
// registry, lock controller and conversation router.
type ChatServer struct {
	log         *log.Logger
	db          database.MessagingRepository
	stats       stats.StatsProvider
	presence    *PresenceRegistry
	lock        *LockController
	router      *ConversationRouter
	broadcaster *PublicBroadcaster

	RegisterChan   chan *Client
	DeregisterChan chan *Client
	handlers       map[string]func(*Client, *ClientEvent)
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.MessagingRepository, su stats.StatsProvider) (*ChatServer, error) {
	lock, err := NewLockController(logger, db)
	if err != nil {
		return nil, err
	}

	presence := NewPresenceRegistry()

	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		presence:       presence,
		lock:           lock,
		router:         NewConversationRouter(logger, db),
		broadcaster:    NewPublicBroadcaster(logger, db, lock, presence),
		RegisterChan:   make(chan *Client),
		DeregisterChan: make(chan *Client),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	cs.handlers = map[string]func(*Client, *ClientEvent){
		EvSendPublicMessage:    cs.handleSendPublic,
		EvDeletePublicMessage:  cs.handleDeletePublic,
		EvLockMessaging:        cs.handleLock,
		EvUnlockMessaging:      cs.handleUnlock,
		EvSendPrivateMessage:   cs.handleSendPrivate,
		EvMarkMessageRead:      cs.handleMarkRead,
		EvMarkConversationRead: cs.handleMarkConversationRead,
		EvDeletePrivateMessage: cs.handleDeletePrivate,
		EvTypingPublic:         cs.handleTypingPublic,
		EvTypingPrivate:        cs.handleTypingPrivate,
		EvStopTypingPublic:     cs.handleStopTypingPublic,
		EvStopTypingPrivate:    cs.handleStopTypingPrivate,
		EvGetOnlineUsers:       cs.handleGetOnlineUsers,
		EvRefreshLockStatus:    cs.handleRefreshLockStatus,
	}

	su.RegisterMetric(MetricNumConnections)
	su.RegisterMetric(MetricNumOnlineUsers)
	su.RegisterMetric(MetricPublicMessagesSent)
	su.RegisterMetric(MetricPrivateMessagesSent)

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.RegisterChan:
			cs.addClient(c)
		case c := <-cs.DeregisterChan:
			cs.removeClient(c)
		case <-cs.stop:
			cs.log.Println("closing client sessions")
			for _, c := range cs.presence.Sessions() {
				cs.presence.Unregister(c)
				close(c.stop)
			}

			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.log.Printf("session %s connected for user %d", c.sessionId, c.user.Id)
	first := cs.presence.Register(c)
	cs.stats.Incr(MetricNumConnections)

	if first {
		cs.stats.Incr(MetricNumOnlineUsers)
		// the joining session learns its own presence implicitly
		cs.broadcaster.fanOut(newEvent(EvUserOnline, map[string]any{
			"user_id": c.user.Id,
			"name":    c.user.Name,
			"role":    c.user.Role,
		}), c)
	}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.log.Printf("session %s disconnected for user %d", c.sessionId, c.user.Id)
	last := cs.presence.Unregister(c)
	cs.stats.Decr(MetricNumConnections)

	if last {
		cs.stats.Decr(MetricNumOnlineUsers)
		cs.broadcaster.fanOut(newEvent(EvUserOffline, map[string]any{
			"user_id": c.user.Id,
		}), nil)
	}
}

// RegisterClient hands a freshly upgraded session to the gateway loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// Presence returns the registry for read-only presence queries.
func (cs *ChatServer) Presence() *PresenceRegistry {
	return cs.presence
}

// Lock returns the lock controller shared with the HTTP layer.
func (cs *ChatServer) Lock() *LockController {
	return cs.lock
}

// Router returns the conversation router shared with the HTTP layer.
func (cs *ChatServer) Router() *ConversationRouter {
	return cs.router
}

// Broadcaster returns the public broadcaster shared with the HTTP layer.
func (cs *ChatServer) Broadcaster() *PublicBroadcaster {
	return cs.broadcaster
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) dispatch(ev *ClientEvent) {
	handler, ok := cs.handlers[ev.Kind]
	if !ok {
		ev.client.queueEvent(newErrEvent(ev.Id, CodeBadEvent, "unknown event kind"))
		return
	}

	handler(ev.client, ev)
}

func decodePayload[T any](ev *ClientEvent) (T, bool) {
	var payload T
	if len(ev.Data) == 0 {
		return payload, true
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		ev.client.queueEvent(newErrEvent(ev.Id, CodeBadEvent, "invalid event payload"))
		return payload, false
	}
	return payload, true
}

func (cs *ChatServer) handleSendPublic(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[PublicMessagePayload](ev)
	if !ok {
		return
	}

	msg, err := cs.broadcaster.Broadcast(c.user, payload.Content, c)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}

	cs.stats.Incr(MetricPublicMessagesSent)
	c.queueEvent(newReply(ev.Id, EvMessageSent, map[string]any{
		"message_id": msg.Id,
		"status":     "success",
	}))
}

func (cs *ChatServer) handleDeletePublic(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[DeletePublicPayload](ev)
	if !ok {
		return
	}
	if payload.MessageId == 0 {
		c.queueEvent(errResponse(ev.Id, types.NewValidationError("message_id", "required")))
		return
	}

	if err := cs.broadcaster.Delete(c.user, payload.MessageId); err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}

	c.queueEvent(newReply(ev.Id, EvMessageDeletedPublic, map[string]any{
		"message_id": payload.MessageId,
		"status":     "success",
	}))
}

// LockMessaging locks the public channel on behalf of an admin and
// announces it to every connected session. Shared by the websocket
// handler and the REST admin endpoint.
func (cs *ChatServer) LockMessaging(admin types.User, reason string) error {
	if !admin.IsAdmin() {
		return types.NewAuthorizationError("lock messaging")
	}

	if err := cs.lock.Lock(admin.Id, reason); err != nil {
		return err
	}

	cs.broadcaster.fanOut(newEvent(EvSystemLocked, map[string]any{
		"reason":    reason,
		"locked_by": admin.Name,
	}), nil)
	return nil
}

func (cs *ChatServer) UnlockMessaging(admin types.User) error {
	if !admin.IsAdmin() {
		return types.NewAuthorizationError("unlock messaging")
	}

	if err := cs.lock.Unlock(); err != nil {
		return err
	}

	cs.broadcaster.fanOut(newEvent(EvSystemUnlocked, map[string]any{
		"unlocked_by": admin.Name,
	}), nil)
	return nil
}

func (cs *ChatServer) handleLock(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[LockPayload](ev)
	if !ok {
		return
	}

	if err := cs.LockMessaging(c.user, payload.Reason); err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}

	c.queueEvent(newReply(ev.Id, EvLockStatus, cs.lock.Status()))
}

func (cs *ChatServer) handleUnlock(c *Client, ev *ClientEvent) {
	if err := cs.UnlockMessaging(c.user); err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}

	c.queueEvent(newReply(ev.Id, EvLockStatus, cs.lock.Status()))
}

func (cs *ChatServer) handleSendPrivate(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[PrivateMessagePayload](ev)
	if !ok {
		return
	}
	if payload.ReceiverId == 0 {
		c.queueEvent(errResponse(ev.Id, types.NewValidationError("receiver_id", "required")))
		return
	}

	msg, err := cs.router.Route(c.user, payload.ReceiverId, payload.Content)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}

	cs.stats.Incr(MetricPrivateMessagesSent)
	cs.sendToUser(msg.ReceiverId, newEvent(EvReceivePrivateMessage, msg))
	c.queueEvent(newReply(ev.Id, EvMessageSent, map[string]any{
		"message_id":  msg.Id,
		"receiver_id": msg.ReceiverId,
		"status":      "success",
	}))
}

func (cs *ChatServer) handleMarkRead(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[MarkReadPayload](ev)
	if !ok {
		return
	}
	if payload.MessageId == 0 {
		c.queueEvent(errResponse(ev.Id, types.NewValidationError("message_id", "required")))
		return
	}

	msg, err := cs.db.GetPrivateMessage(payload.MessageId)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}
	if msg.ReceiverId != c.user.Id {
		c.queueEvent(errResponse(ev.Id, types.NewAuthorizationError("mark message read")))
		return
	}

	changed, err := cs.db.MarkRead(payload.MessageId, c.user.Id)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, types.NewStorageError("mark read", err)))
		return
	}

	if changed {
		cs.sendToUser(msg.SenderId, newEvent(EvMessageRead, map[string]any{
			"message_id": payload.MessageId,
			"reader_id":  c.user.Id,
		}))
	}

	c.queueEvent(newReply(ev.Id, EvMessageRead, map[string]any{
		"message_id": payload.MessageId,
		"status":     "success",
	}))
}

func (cs *ChatServer) handleMarkConversationRead(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[MarkConversationReadPayload](ev)
	if !ok {
		return
	}
	if payload.OtherUserId == 0 {
		c.queueEvent(errResponse(ev.Id, types.NewValidationError("other_user_id", "required")))
		return
	}

	count, err := cs.db.MarkConversationRead(payload.OtherUserId, c.user.Id)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, types.NewStorageError("mark conversation read", err)))
		return
	}

	if count > 0 {
		cs.sendToUser(payload.OtherUserId, newEvent(EvConversationRead, map[string]any{
			"other_user_id": c.user.Id,
		}))
	}

	c.queueEvent(newReply(ev.Id, EvConversationRead, map[string]any{
		"other_user_id": payload.OtherUserId,
		"marked":        count,
	}))
}

func (cs *ChatServer) handleDeletePrivate(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[DeletePrivatePayload](ev)
	if !ok {
		return
	}
	if payload.MessageId == 0 {
		c.queueEvent(errResponse(ev.Id, types.NewValidationError("message_id", "required")))
		return
	}

	msg, err := cs.db.GetPrivateMessage(payload.MessageId)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, err))
		return
	}

	deleted, err := cs.db.SoftDeletePrivate(payload.MessageId, c.user.Id)
	if err != nil {
		c.queueEvent(errResponse(ev.Id, types.NewStorageError("delete private message", err)))
		return
	}
	if !deleted {
		c.queueEvent(errResponse(ev.Id, types.NewAuthorizationError("delete private message")))
		return
	}

	otherUserId := msg.SenderId
	if c.user.Id == msg.SenderId {
		otherUserId = msg.ReceiverId
	}
	cs.sendToUser(otherUserId, newEvent(EvMessageDeletedPrivate, map[string]any{
		"message_id": payload.MessageId,
		"deleted_by": c.user.Id,
	}))

	c.queueEvent(newReply(ev.Id, EvMessageDeletedPrivate, map[string]any{
		"message_id": payload.MessageId,
		"status":     "success",
	}))
}

func (cs *ChatServer) handleTypingPublic(c *Client, ev *ClientEvent) {
	cs.broadcaster.fanOut(newEvent(EvUserTypingPublic, map[string]any{
		"user_id": c.user.Id,
		"name":    c.user.Name,
	}), c)
}

func (cs *ChatServer) handleTypingPrivate(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[TypingPayload](ev)
	if !ok || payload.ReceiverId == 0 {
		return
	}

	cs.sendToUser(payload.ReceiverId, newEvent(EvUserTypingPrivate, map[string]any{
		"user_id":     c.user.Id,
		"name":        c.user.Name,
		"receiver_id": payload.ReceiverId,
	}))
}

func (cs *ChatServer) handleStopTypingPublic(c *Client, ev *ClientEvent) {
	cs.broadcaster.fanOut(newEvent(EvUserStoppedTypingPub, map[string]any{
		"user_id": c.user.Id,
	}), c)
}

func (cs *ChatServer) handleStopTypingPrivate(c *Client, ev *ClientEvent) {
	payload, ok := decodePayload[TypingPayload](ev)
	if !ok || payload.ReceiverId == 0 {
		return
	}

	cs.sendToUser(payload.ReceiverId, newEvent(EvUserStoppedTypingPriv, map[string]any{
		"user_id":     c.user.Id,
		"receiver_id": payload.ReceiverId,
	}))
}

func (cs *ChatServer) handleGetOnlineUsers(c *Client, ev *ClientEvent) {
	users := cs.presence.ListOnline()
	c.queueEvent(newReply(ev.Id, EvOnlineUsers, map[string]any{
		"users": users,
		"count": len(users),
	}))
}

func (cs *ChatServer) handleRefreshLockStatus(c *Client, ev *ClientEvent) {
	c.queueEvent(newReply(ev.Id, EvLockStatus, cs.lock.Status()))
}

func (cs *ChatServer) sendToUser(userId int, ev *ServerEvent) {
	for _, c := range cs.presence.UserSessions(userId) {
		if !c.queueEvent(ev) {
			cs.log.Printf("dropping %s push for session %s, send buffer full", ev.Kind, c.sessionId)
		}
	}
}
