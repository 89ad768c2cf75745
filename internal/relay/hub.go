package relay

import (
	"errors"
	"log/slog"

	"github.com/NichHarris/intera-client/internal/registry"
	"github.com/NichHarris/intera-client/internal/signaling"
)

// inbound pairs an envelope with the connection it arrived on.
type inbound struct {
	client *Client
	msg    *signaling.Message
}

// Hub relays signaling events between the two participants of a room.
// Membership verdicts come from the registry, which is the single
// source of truth; the hub only tracks which verdict-holding users are
// currently connected.
type Hub struct {
	reg *registry.Registry

	// members maps room ID -> user -> connected client.
	members map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan *inbound

	// mutations carries room IDs whose transcript changed out-of-band
	// (HTTP append); both participants get a mutate push.
	mutations chan string
}

// NewHub creates a hub backed by the given registry.
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		reg:        reg,
		members:    make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *inbound),
		mutations:  make(chan string, 16),
	}
}

// NotifyMutate implements registry.Notifier. Safe to call from any
// goroutine; the push happens on the hub loop.
func (h *Hub) NotifyMutate(roomID string) {
	h.mutations <- roomID
}

// Run is the hub's single-goroutine event loop. All room/connection
// state is owned by this loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// Connection established; no membership yet. The client must
			// send a join event before anything is relayed.
			slog.Debug("client connected", "addr", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.detach(client)
			h.closeSend(client)

		case in := <-h.Inbound:
			h.dispatch(in)

		case roomID := <-h.mutations:
			h.pushMutate(roomID)
		}
	}
}

// detach drops the connection from the room's member set. A transport
// drop does not remove the user from the room: only an explicit leave
// does that, so a reconnecting participant can re-run the join
// handshake and find their seat intact.
func (h *Hub) detach(client *Client) {
	if client.RoomID == "" {
		return
	}
	if room, ok := h.members[client.RoomID]; ok {
		if room[client.User] == client {
			delete(room, client.User)
		}
		if len(room) == 0 {
			delete(h.members, client.RoomID)
		}
	}
	slog.Debug("client disconnected", "user", client.User, "room", client.RoomID)
}

// closeSend closes the client's outbound channel exactly once, which
// makes WritePump tear the connection down.
func (h *Hub) closeSend(client *Client) {
	if client.sendClosed {
		return
	}
	client.sendClosed = true
	close(client.Send)
}

// trySend queues a message without blocking the hub loop. A client
// whose buffer is full is not draining its connection, so it gets
// detached; an explicit leave never arrived, which means its registry
// seat survives for a reconnect.
func (h *Hub) trySend(client *Client, msg *signaling.Message) {
	select {
	case client.Send <- msg:
	default:
		slog.Warn("dropping unresponsive client", "user", client.User, "room", client.RoomID)
		h.detach(client)
		h.closeSend(client)
	}
}

func (h *Hub) dispatch(in *inbound) {
	switch in.msg.Type {
	case signaling.EventJoin:
		h.handleJoin(in.client, in.msg)

	case signaling.EventDataTransfer:
		h.forward(in.client, in.msg)

	case signaling.EventMutate:
		h.forward(in.client, in.msg)

	case signaling.EventLeave:
		h.handleLeave(in.client, in.msg)

	default:
		slog.Debug("ignoring unknown event", "type", in.msg.Type)
	}
}

// handleJoin runs the registry verdict and, when it completes a room of
// two, pushes ready to the participant that was already present. That
// participant is the offerer; the joiner waits for the offer. The
// asymmetry is the only thing preventing duplicate negotiation rounds.
func (h *Hub) handleJoin(client *Client, msg *signaling.Message) {
	info, err := h.reg.Join(msg.RoomID, msg.User)
	if err != nil {
		reason := signaling.ReasonInvalidRoom
		switch {
		case errors.Is(err, registry.ErrInactive):
			reason = signaling.ReasonExpiredRoom
		case errors.Is(err, registry.ErrRoomFull):
			reason = signaling.ReasonFullRoom
		}
		slog.Info("join rejected", "room", msg.RoomID, "user", msg.User, "reason", reason)
		h.reply(client, signaling.EventError, &signaling.ErrorBody{Reason: reason, RoomID: msg.RoomID})
		return
	}

	client.User = msg.User
	client.RoomID = msg.RoomID

	room := h.members[msg.RoomID]
	if room == nil {
		room = make(map[string]*Client)
		h.members[msg.RoomID] = room
	}
	wasMember := room[msg.User] != nil
	room[msg.User] = client

	slog.Info("user joined", "room", msg.RoomID, "user", msg.User, "occupancy", len(info.Users))
	h.reply(client, signaling.EventJoined, &signaling.JoinedBody{Users: info.Users})

	if len(info.Users) == registry.MaxUsers && !wasMember {
		if other := h.peerOf(client); other != nil {
			h.trySend(other, &signaling.Message{Type: signaling.EventReady, RoomID: msg.RoomID})
		}
	}
}

// handleLeave removes the user from the registry and notifies the peer.
// The host leaving closes the room; the forwarded leave forces the
// guest's controller through its own cleanup and redirect. A guest
// leaving keeps the room open for a new guest.
func (h *Hub) handleLeave(client *Client, msg *signaling.Message) {
	if client.RoomID == "" {
		return
	}

	peer := h.peerOf(client)

	closed, err := h.reg.Leave(client.RoomID, client.User)
	if err != nil {
		slog.Warn("leave failed", "room", client.RoomID, "user", client.User, "err", err)
		return
	}
	slog.Info("user left", "room", client.RoomID, "user", client.User, "room_closed", closed)

	if peer != nil {
		h.trySend(peer, &signaling.Message{
			Type:   signaling.EventLeave,
			User:   client.User,
			RoomID: client.RoomID,
		})
	}

	if room, ok := h.members[client.RoomID]; ok {
		delete(room, client.User)
		if len(room) == 0 {
			delete(h.members, client.RoomID)
		}
	}
	client.RoomID = ""
}

// forward relays an envelope to the other participant in the room.
func (h *Hub) forward(client *Client, msg *signaling.Message) {
	if client.RoomID == "" {
		slog.Debug("dropping event from client with no room", "type", msg.Type)
		return
	}
	if other := h.peerOf(client); other != nil {
		h.trySend(other, msg)
	} else {
		slog.Debug("no peer to relay to", "room", client.RoomID, "type", msg.Type)
	}
}

// peerOf returns the other connected member of the client's room.
func (h *Hub) peerOf(client *Client) *Client {
	for user, other := range h.members[client.RoomID] {
		if user != client.User {
			return other
		}
	}
	return nil
}

func (h *Hub) pushMutate(roomID string) {
	msg := &signaling.Message{Type: signaling.EventMutate, RoomID: roomID}
	for _, client := range h.members[roomID] {
		h.trySend(client, msg)
	}
}

// reply sends an event with a JSON body back on the client's channel.
func (h *Hub) reply(client *Client, event string, body any) {
	msg, err := signaling.NewMessage(event, "", client.RoomID, body)
	if err != nil {
		slog.Error("failed to encode reply", "event", event, "err", err)
		return
	}
	h.trySend(client, msg)
}
