package app

import (
	"log/slog"
	"sort"
	"sync"

	"quiz-sync-service/internal/domain"
)

// Conn is one live participant connection as seen by the room registry.
type Conn interface {
	ID() string
	Identity() domain.Identity
	// Send enqueues an event without blocking; false means the connection is gone.
	Send(event domain.Event) bool
}

// RoomRegistry maps presentation ids to their connected participants and
// doubles as the broadcast bus for those rooms.
type RoomRegistry struct {
	log *slog.Logger

	mu          sync.RWMutex
	rooms       map[string]*room
	memberships map[string]map[string]struct{} // conn id -> presentation ids
}

type room struct {
	// emit serializes broadcasts so members observe one emission order.
	emit    sync.Mutex
	members map[string]Conn
}

func NewRoomRegistry(log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		log:         log,
		rooms:       make(map[string]*room),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room. Joining twice is a no-op.
func (r *RoomRegistry) Join(conn Conn, presentationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[presentationID]
	if !ok {
		rm = &room{members: make(map[string]Conn)}
		r.rooms[presentationID] = rm
	}
	rm.members[conn.ID()] = conn

	joined, ok := r.memberships[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[conn.ID()] = joined
	}
	joined[presentationID] = struct{}{}

	size := len(rm.members)
	r.log.Info("joined presentation room",
		"presentation_id", presentationID,
		"conn_id", conn.ID(),
		"user_id", conn.Identity().UserID,
		"members", size)
	return size
}

// Leave removes the connection from the room. Leaving a room twice is a no-op.
func (r *RoomRegistry) Leave(conn Conn, presentationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn.ID(), presentationID)
}

// Disconnect removes the connection from every room it joined.
func (r *RoomRegistry) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for presentationID := range r.memberships[conn.ID()] {
		r.leaveLocked(conn.ID(), presentationID)
	}
	delete(r.memberships, conn.ID())
}

func (r *RoomRegistry) leaveLocked(connID, presentationID string) {
	if joined, ok := r.memberships[connID]; ok {
		delete(joined, presentationID)
		if len(joined) == 0 {
			delete(r.memberships, connID)
		}
	}

	rm, ok := r.rooms[presentationID]
	if !ok {
		return
	}
	if _, member := rm.members[connID]; !member {
		return
	}
	delete(rm.members, connID)
	r.log.Info("left presentation room",
		"presentation_id", presentationID,
		"conn_id", connID,
		"members", len(rm.members))
	if len(rm.members) == 0 {
		delete(r.rooms, presentationID)
	}
}

// IsMember reports whether the connection currently belongs to the room.
func (r *RoomRegistry) IsMember(connID, presentationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.memberships[connID][presentationID]
	return ok
}

// Count returns the number of connections in the room.
func (r *RoomRegistry) Count(presentationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.rooms[presentationID]; ok {
		return len(rm.members)
	}
	return 0
}

// Rooms lists the presentation ids the connection has joined, sorted.
func (r *RoomRegistry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.memberships[connID]))
	for id := range r.memberships[connID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast delivers the event to every member of the room and returns how
// many connections accepted it. Delivery is best-effort.
func (r *RoomRegistry) Broadcast(presentationID string, event domain.Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[presentationID]
	if !ok {
		r.log.Debug("broadcast to empty room", "presentation_id", presentationID, "event", event.Type)
		return 0
	}

	rm.emit.Lock()
	defer rm.emit.Unlock()

	delivered := 0
	for _, conn := range rm.members {
		if conn.Send(event) {
			delivered++
		}
	}
	r.log.Debug("broadcast",
		"presentation_id", presentationID,
		"event", event.Type,
		"delivered", delivered,
		"members", len(rm.members))
	return delivered
}
