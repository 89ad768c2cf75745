// Package registry is the single source of truth for room membership.
// It serializes concurrent join/leave/close attempts for a room; the
// participant engines treat its verdicts as authoritative even when they
// contradict their local optimistic state.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NichHarris/intera-client/internal/call"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrInactive = errors.New("room is no longer active")
	ErrRoomFull = errors.New("room is full")
	ErrNotHost  = errors.New("only the host may close the room")
	ErrBadRole  = errors.New("unknown role")
)

// MaxUsers is the hard room capacity. Rooms hold exactly two
// participants: the host and one guest.
const MaxUsers = 2

// Message is one transcript entry. Type records which pipeline produced
// the text: speech-to-text or sign-language translation.
type Message struct {
	ID        string    `json:"id"`
	ToUser    string    `json:"to_user"`
	Text      string    `json:"message"`
	Type      call.Role `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Room is a bounded two-participant call session. Users is ordered:
// index 0 is the host. Once Active is false the room accepts no joins.
type Room struct {
	ID       string
	Users    []string
	HostType call.Role
	Active   bool
	Messages []Message
}

// RoomInfo is the JSON view served by the lookup API.
type RoomInfo struct {
	RoomID       string    `json:"room_id"`
	Users        []string  `json:"users"`
	HostType     call.Role `json:"host_type"`
	Active       bool      `json:"active"`
	MessagesInfo []Message `json:"messages_info"`
}

func (r *Room) info() *RoomInfo {
	users := make([]string, len(r.Users))
	copy(users, r.Users)
	messages := make([]Message, len(r.Messages))
	copy(messages, r.Messages)
	return &RoomInfo{
		RoomID:       r.ID,
		Users:        users,
		HostType:     r.HostType,
		Active:       r.Active,
		MessagesInfo: messages,
	}
}

// host returns the room's host nickname, or "" for an empty room.
func (r *Room) host() string {
	if len(r.Users) == 0 {
		return ""
	}
	return r.Users[0]
}

// Registry tracks all rooms. All operations are serialized under one
// mutex so capacity and lifecycle checks cannot race each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// generateRoomID creates a random, memorable room ID from word
// combinations, e.g. "amber-otter-quiet-harbor". Re-rolls on collision.
func (r *Registry) generateRoomID() string {
	for {
		id := fmt.Sprintf("%s-%s-%s-%s",
			colors[randomIndex(len(colors))],
			animals[randomIndex(len(animals))],
			textures[randomIndex(len(textures))],
			places[randomIndex(len(places))],
		)
		if _, ok := r.rooms[id]; !ok {
			return id
		}
	}
}

// Create makes a new active room with the creator seated as host
// (index 0) and the given host role.
func (r *Registry) Create(host string, hostType call.Role) (*RoomInfo, error) {
	if !hostType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadRole, hostType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room := &Room{
		ID:       r.generateRoomID(),
		Users:    []string{host},
		HostType: hostType,
		Active:   true,
	}
	r.rooms[room.ID] = room
	return room.info(), nil
}

// Lookup returns the room's current state.
func (r *Registry) Lookup(roomID string) (*RoomInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.info(), true
}

// Join adds a user to the room, enforcing the at-most-2 capacity.
// Joining a room one is already in is idempotent, which is how the
// host's signaling attach after Create resolves.
func (r *Registry) Join(roomID, user string) (*RoomInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if !room.Active {
		return nil, ErrInactive
	}
	for _, u := range room.Users {
		if u == user {
			return room.info(), nil
		}
	}
	if len(room.Users) >= MaxUsers {
		return nil, ErrRoomFull
	}

	room.Users = append(room.Users, user)
	return room.info(), nil
}

// Leave removes a user from the room. The host leaving closes the room;
// a guest leaving keeps it open for a new guest. Returns whether the
// room was closed by this leave.
func (r *Registry) Leave(roomID, user string) (closed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}

	if user == room.host() {
		room.Active = false
		room.Users = nil
		return true, nil
	}

	for i, u := range room.Users {
		if u == user {
			room.Users = append(room.Users[:i], room.Users[i+1:]...)
			break
		}
	}
	return false, nil
}

// Close deactivates the room. Host only.
func (r *Registry) Close(roomID, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if user != room.host() {
		return ErrNotHost
	}
	room.Active = false
	return nil
}

// Append records a transcript message. The caller is responsible for
// broadcasting the mutate notification afterwards.
func (r *Registry) Append(roomID, toUser, text string, msgType call.Role) (*Message, error) {
	if !msgType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadRole, msgType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if !room.Active {
		return nil, ErrInactive
	}

	msg := Message{
		ID:        uuid.NewString(),
		ToUser:    toUser,
		Text:      text,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}
	room.Messages = append(room.Messages, msg)
	return &msg, nil
}
