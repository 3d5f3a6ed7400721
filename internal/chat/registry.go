package chat

import (
	"sync"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/metrics"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// Registry is the live-connection directory: which sessions belong to which
// room. It owns the membership sets; sessions are referenced, never owned.
// All mutation and iteration goes through its lock, so a broadcast never
// observes a half-mutated set.
type Registry struct {
	mu sync.RWMutex
	// room id -> membership set
	rooms map[string]map[*Session]struct{}
	// reverse index, session -> room id; the single source of truth for
	// where a session is registered
	sessions map[*Session]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]string),
	}
}

// Register adds a session to a room's membership set, creating the set if
// absent. A user may hold several connections to the same room; each is a
// distinct member. Never fails.
func (r *Registry) Register(roomID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[*Session]struct{})
	}
	r.rooms[roomID][s] = struct{}{}
	r.sessions[s] = roomID

	metrics.WSConnectionsActive.Inc()
}

// Deregister removes a session from whatever room it is bound to. Empty
// membership sets are dropped so dead rooms do not accumulate. Idempotent:
// deregistering an unknown session is a no-op.
func (r *Registry) Deregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.sessions[s]
	if !ok {
		return
	}
	delete(r.sessions, s)

	if members, ok := r.rooms[roomID]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}

	metrics.WSConnectionsActive.Dec()
}

// Broadcast delivers payload to every session registered under roomID
// except exclude. Delivery is best-effort per recipient: a session that
// cannot accept the payload is deregistered and closed, and delivery to the
// others continues. The membership set is snapshotted under the read lock
// and iterated outside it, so concurrent register/deregister never fault
// the fan-out.
func (r *Registry) Broadcast(roomID string, payload []byte, exclude *Session) {
	r.mu.RLock()
	members := r.rooms[roomID]
	snapshot := make([]*Session, 0, len(members))
	for s := range members {
		if s != exclude {
			snapshot = append(snapshot, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.enqueue(payload); err != nil {
			// Slow or dead consumer; drop it so the next broadcast does
			// not hit the same wall.
			metrics.BroadcastFailures.Inc()
			r.Deregister(s)
			s.close()
		}
	}
}

// BroadcastMessage fans a persisted message out to the room's live
// sessions. The REST send path uses this so socket clients converge with
// poll clients.
func (r *Registry) BroadcastMessage(msg *models.Message) {
	r.Broadcast(msg.RoomID, marshalEvent(messageEvent{
		Type:       EventNewMessage,
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Message:    msg.Body,
		CreatedAt:  msg.CreatedAt,
		IsRead:     msg.IsRead,
	}), nil)
}

// RoomSize returns the number of live sessions registered in a room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Connections returns the total number of live sessions across all rooms.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Contains reports whether a session is currently registered.
func (r *Registry) Contains(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[s]
	return ok
}
