package server

import (
	"sync"
	"time"

	"github.com/alumnihub/messaging/internal/types"
)

// PresenceRegistry tracks which users currently hold live sessions.
// It is not persisted; after a restart it repopulates as clients
// reconnect. All access goes through the mutex-guarded methods, no
// caller touches the maps directly.
type PresenceRegistry struct {
	mu       sync.Mutex
	sessions map[*Client]struct{}
	userMap  map[int]map[*Client]struct{}
	firstAt  map[int]time.Time
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		sessions: make(map[*Client]struct{}),
		userMap:  make(map[int]map[*Client]struct{}),
		firstAt:  make(map[int]time.Time),
	}
}

// Register adds a session and reports whether this is the user's
// first live session (i.e. the user just came online).
func (p *PresenceRegistry) Register(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions[c] = struct{}{}

	first := p.userMap[c.user.Id] == nil
	if first {
		p.userMap[c.user.Id] = make(map[*Client]struct{})
		p.firstAt[c.user.Id] = c.connectedAt
	}
	p.userMap[c.user.Id][c] = struct{}{}

	return first
}

// Unregister removes a session and reports whether the user has no
// sessions left (i.e. the user just went offline).
func (p *PresenceRegistry) Unregister(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[c]; !ok {
		return false
	}
	delete(p.sessions, c)

	userSessions := p.userMap[c.user.Id]
	delete(userSessions, c)
	if len(userSessions) == 0 {
		delete(p.userMap, c.user.Id)
		delete(p.firstAt, c.user.Id)
		return true
	}

	return false
}

func (p *PresenceRegistry) IsOnline(userId int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.userMap[userId] != nil
}

// Sessions returns a snapshot of every live session.
func (p *PresenceRegistry) Sessions() []*Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	clients := make([]*Client, 0, len(p.sessions))
	for c := range p.sessions {
		clients = append(clients, c)
	}
	return clients
}

// UserSessions returns a snapshot of the user's live sessions.
func (p *PresenceRegistry) UserSessions(userId int) []*Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	clients := make([]*Client, 0, len(p.userMap[userId]))
	for c := range p.userMap[userId] {
		clients = append(clients, c)
	}
	return clients
}

// ListOnline returns one entry per online user with the time their
// earliest session connected.
func (p *PresenceRegistry) ListOnline() []types.OnlineUser {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := make([]types.OnlineUser, 0, len(p.userMap))
	for userId, userSessions := range p.userMap {
		var u types.User
		for c := range userSessions {
			u = c.user
			break
		}

		users = append(users, types.OnlineUser{
			UserId:      userId,
			Name:        u.Name,
			Role:        u.Role,
			ConnectedAt: p.firstAt[userId],
		})
	}

	return users
}

func (p *PresenceRegistry) NumSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sessions)
}
