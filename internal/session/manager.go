package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/events"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/metrics"
	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
)

// Manager is the room session manager. It mediates every join/leave/edit/
// typing event: it updates the presence table, issues document store calls
// and fans messages out to the room's connections.
//
// Operations targeting the same room execute one-at-a-time in arrival order
// (per-room mutex); operations on different rooms run in parallel. The lock
// covers only the in-memory mutation and the broadcast. Store calls run
// after the lock is released, each under its own short deadline, so a slow
// or dead store delays at most the calling connection's own next event and
// never blocks other connections on the room. Persistence is best-effort
// throughout: the in-memory state change and the broadcast always go
// through, and the next mutating event is the retry opportunity.
type Manager struct {
	log          *zap.Logger
	store        Store
	events       *events.Publisher
	presence     *Presence
	storeTimeout time.Duration

	mu    sync.RWMutex
	rooms map[string]*roomState
}

// roomState is the fanout side of a room: the live connections joined to
// it. The presence table tracks names; this tracks sockets.
type roomState struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	reaped  bool
}

func NewManager(log *zap.Logger, store Store, pub *events.Publisher, storeTimeout time.Duration) *Manager {
	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}
	return &Manager{
		log:          log,
		store:        store,
		events:       pub,
		presence:     NewPresence(),
		storeTimeout: storeTimeout,
		rooms:        make(map[string]*roomState),
	}
}

// lockRoom returns the room's state with its mutex held, creating it on
// first reference. The retry loop covers the window where the reaper
// deletes a state between the map lookup and the lock acquisition.
func (m *Manager) lockRoom(roomID string) *roomState {
	for {
		m.mu.Lock()
		rs, ok := m.rooms[roomID]
		if !ok {
			rs = &roomState{clients: make(map[*Client]struct{})}
			m.rooms[roomID] = rs
		}
		m.mu.Unlock()

		rs.mu.Lock()
		if !rs.reaped {
			return rs
		}
		rs.mu.Unlock()
	}
}

func (m *Manager) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.storeTimeout)
}

// Join attaches a connection to a room under a user name. A connection
// belongs to at most one room: joining a different room runs an implicit
// Leave first. The room is created durably on first reference; there is no
// explicit create-room operation.
//
// The durable lookup happens before the room lock is taken and the
// create/mirror write after it is released; the lock itself covers only
// presence, the point-to-point state frames and the userJoined broadcast.
func (m *Manager) Join(c *Client, roomID, userName string) {
	if roomID == "" || userName == "" {
		c.Send(errFrame("roomId and userName are required"))
		return
	}
	if c.currentRoom != "" && c.currentRoom != roomID {
		m.Leave(c)
	}

	findCtx, cancelFind := m.storeCtx()
	room, findErr := m.store.FindRoom(findCtx, roomID)
	cancelFind()

	degraded := false
	creating := false
	switch {
	case findErr == nil:
	case errors.Is(findErr, ErrRoomNotFound):
		creating = true
		now := time.Now().UTC()
		room = &models.Room{
			RoomID:       roomID,
			Code:         "",
			Language:     models.DefaultLanguage,
			CreatedAt:    now,
			LastModified: now,
		}
	default:
		m.log.Warn("room lookup failed",
			zap.String("room", roomID), zap.Error(findErr))
		metrics.StoreFailures.WithLabelValues("findRoom").Inc()
		degraded = true
		room = nil
	}

	rs := m.lockRoom(roomID)
	rs.clients[c] = struct{}{}
	m.presence.Add(roomID, userName)
	users := m.presence.Snapshot(roomID)

	// Point-to-point state for the joiner. When the lookup itself failed we
	// don't know the current code, so those frames are skipped and only the
	// error frame (below) goes out.
	if room != nil {
		c.Send(models.WSFrame{Type: models.MsgCodeUpdate, Data: room.Code})
		c.Send(models.WSFrame{Type: models.MsgLanguageUpdate, Data: room.Language})
	}
	m.broadcast(rs, models.WSFrame{Type: models.MsgUserJoined, Data: users})

	c.currentRoom = roomID
	c.currentUser = userName
	rs.mu.Unlock()

	// Durable side, outside the lock: create on first reference, otherwise
	// mirror the presence snapshot.
	created := false
	if !degraded {
		ctx, cancel := m.storeCtx()
		if creating {
			room.ActiveUsers = users
			if cerr := m.store.CreateRoom(ctx, room); cerr != nil {
				// A concurrent first join may have created the record between
				// our lookup and the insert; the mirror write settles it.
				if uerr := m.store.UpdateActiveUsers(ctx, roomID, users); uerr != nil {
					m.log.Warn("create room failed",
						zap.String("room", roomID), zap.Error(cerr))
					metrics.StoreFailures.WithLabelValues("createRoom").Inc()
					degraded = true
				}
			} else {
				created = true
			}
		} else {
			if uerr := m.store.UpdateActiveUsers(ctx, roomID, users); uerr != nil {
				m.log.Warn("persist active users failed",
					zap.String("room", roomID), zap.Error(uerr))
				metrics.StoreFailures.WithLabelValues("updateActiveUsers").Inc()
				degraded = true
			}
		}
		cancel()
	}
	if degraded {
		c.Send(errFrame("document store unavailable; session is live but unsaved"))
	}

	metrics.TrackedRooms.Set(float64(m.presence.RoomCount()))
	if created {
		m.events.Publish(events.RoomEvent{Type: events.RoomCreated, RoomID: roomID, ActiveUsers: users})
	}
	m.events.Publish(events.RoomEvent{Type: events.UserJoined, RoomID: roomID, UserName: userName, ActiveUsers: users})
	m.log.Info("user joined room",
		zap.String("room", roomID), zap.String("user", userName), zap.Int("occupants", len(users)))
}

// Edit pushes new code to every other connection in the room, then
// persists it. The broadcast happens under the room lock (per-sender
// ordering), the upsert after release, so a wedged store never stalls the
// room's other occupants.
func (m *Manager) Edit(c *Client, roomID, code string) {
	if roomID == "" {
		c.Send(errFrame("roomId is required"))
		return
	}
	rs := m.lockRoom(roomID)
	m.broadcastExcept(rs, c, models.WSFrame{Type: models.MsgCodeUpdate, Data: code})
	rs.mu.Unlock()

	ctx, cancel := m.storeCtx()
	defer cancel()
	if err := m.store.UpdateCode(ctx, roomID, code, time.Now().UTC()); err != nil {
		m.log.Warn("persist code failed", zap.String("room", roomID), zap.Error(err))
		metrics.StoreFailures.WithLabelValues("updateCode").Inc()
	}
}

// LanguageChange is symmetric to Edit but echoes to the sender too, so
// every editor tab switches together.
func (m *Manager) LanguageChange(c *Client, roomID, language string) {
	if roomID == "" {
		c.Send(errFrame("roomId is required"))
		return
	}
	if language == "" {
		return
	}
	rs := m.lockRoom(roomID)
	m.broadcast(rs, models.WSFrame{Type: models.MsgLanguageUpdate, Data: language})
	rs.mu.Unlock()

	ctx, cancel := m.storeCtx()
	defer cancel()
	if err := m.store.UpdateLanguage(ctx, roomID, language, time.Now().UTC()); err != nil {
		m.log.Warn("persist language failed", zap.String("room", roomID), zap.Error(err))
		metrics.StoreFailures.WithLabelValues("updateLanguage").Inc()
	}
}

// Typing relays an ephemeral typing signal to everyone else in the room.
// Nothing is persisted.
func (m *Manager) Typing(c *Client, roomID, userName string) {
	if roomID == "" || userName == "" {
		return
	}
	rs := m.lockRoom(roomID)
	m.broadcastExcept(rs, c, models.WSFrame{Type: models.MsgUserTyping, Data: userName})
	rs.mu.Unlock()
}

// Leave detaches a connection from its current room. A no-op for
// connections that never joined. The updated user list is broadcast even
// when the durable mirror write fails.
//
// User names are the presence identity key: when one name is joined from
// two connections, whichever leaves first removes the name from the list
// even though the other connection is still attached.
func (m *Manager) Leave(c *Client) {
	roomID, user := c.currentRoom, c.currentUser
	if roomID == "" {
		return
	}

	rs := m.lockRoom(roomID)
	delete(rs.clients, c)
	m.presence.Remove(roomID, user)
	users := m.presence.Snapshot(roomID)
	m.broadcast(rs, models.WSFrame{Type: models.MsgUserJoined, Data: users})
	c.currentRoom, c.currentUser = "", ""
	rs.mu.Unlock()

	ctx, cancel := m.storeCtx()
	defer cancel()
	if err := m.store.UpdateActiveUsers(ctx, roomID, users); err != nil {
		m.log.Warn("persist active users failed", zap.String("room", roomID), zap.Error(err))
		metrics.StoreFailures.WithLabelValues("updateActiveUsers").Inc()
	}

	m.events.Publish(events.RoomEvent{Type: events.UserLeft, RoomID: roomID, UserName: user, ActiveUsers: users})
	m.log.Info("user left room",
		zap.String("room", roomID), zap.String("user", user), zap.Int("occupants", len(users)))
}

// Disconnect runs leave cleanup for a connection the transport has already
// torn down. Identical to Leave; the socket itself is gone, so there is
// nobody left to notify.
func (m *Manager) Disconnect(c *Client) { m.Leave(c) }

// TrackedRooms reports how many rooms currently hold in-memory state.
func (m *Manager) TrackedRooms() int { return m.presence.RoomCount() }

// ReapIdle evicts presence entries and fanout state for rooms with zero
// connected users. Durable records are never deleted; the next join
// recreates the in-memory entry.
func (m *Manager) ReapIdle() int {
	removed := m.presence.Reap()

	m.mu.Lock()
	for id, rs := range m.rooms {
		rs.mu.Lock()
		if len(rs.clients) == 0 {
			rs.reaped = true
			delete(m.rooms, id)
		}
		rs.mu.Unlock()
	}
	m.mu.Unlock()

	for _, id := range removed {
		m.events.Publish(events.RoomEvent{Type: events.RoomReaped, RoomID: id})
	}
	metrics.TrackedRooms.Set(float64(m.presence.RoomCount()))
	metrics.ReapedRooms.Add(float64(len(removed)))
	return len(removed)
}

// broadcast sends one frame to every connection in the room. Caller holds
// the room lock.
func (m *Manager) broadcast(rs *roomState, frame models.WSFrame) {
	for c := range rs.clients {
		c.Send(frame)
	}
}

func (m *Manager) broadcastExcept(rs *roomState, sender *Client, frame models.WSFrame) {
	for c := range rs.clients {
		if c == sender {
			continue
		}
		c.Send(frame)
	}
}

func errFrame(msg string) models.WSFrame {
	return models.WSFrame{Type: models.MsgError, Data: msg}
}
