package session

import "sync"

// Presence is the process-wide roomId -> connected user names table. It is
// a pure cache over live connections: the durable record's activeUsers is
// written from it, never read back into it.
//
// User names are the identity key; a name joining twice collapses to one
// entry. Snapshot order is insertion order.
type Presence struct {
	mu    sync.RWMutex
	rooms map[string][]string
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[string][]string)}
}

// Add registers a user in a room, creating the entry on first join.
func (p *Presence) Add(roomID, user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.rooms[roomID] {
		if u == user {
			return
		}
	}
	p.rooms[roomID] = append(p.rooms[roomID], user)
}

// Remove drops a user from a room. An emptied entry is kept until the
// reaper sweeps it, so rapid leave/join cycles don't thrash the map.
func (p *Presence) Remove(roomID, user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := p.rooms[roomID]
	for i, u := range users {
		if u == user {
			p.rooms[roomID] = append(users[:i], users[i+1:]...)
			return
		}
	}
}

// Snapshot returns the room's user list in insertion order. The result is
// a copy and always non-nil.
func (p *Presence) Snapshot(roomID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := p.rooms[roomID]
	out := make([]string, len(users))
	copy(out, users)
	return out
}

// Reap deletes every entry whose user set is empty and returns the removed
// room ids.
func (p *Presence) Reap() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var removed []string
	for roomID, users := range p.rooms {
		if len(users) == 0 {
			delete(p.rooms, roomID)
			removed = append(removed, roomID)
		}
	}
	return removed
}

// RoomCount reports how many rooms are currently tracked in memory.
func (p *Presence) RoomCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}
