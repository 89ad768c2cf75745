package session

import (
	"log/slog"
	"sync"

	"github.com/NichHarris/intera-client/internal/call"
	"github.com/NichHarris/intera-client/internal/roomapi"
	"github.com/NichHarris/intera-client/internal/signaling"
)

// MembershipState tracks a participant's room membership lifecycle.
type MembershipState int

const (
	NotJoined MembershipState = iota
	Joining
	Joined // in the room, waiting for a peer
	Ready  // peer present
	Left
)

func (s MembershipState) String() string {
	switch s {
	case NotJoined:
		return "NOT_JOINED"
	case Joining:
		return "JOINING"
	case Joined:
		return "JOINED"
	case Ready:
		return "READY"
	case Left:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// RoomAPI is the registry read/close surface the controller consumes.
type RoomAPI interface {
	Lookup(roomID string) (*roomapi.RoomInfo, error)
	Close(roomID, user string) error
}

// RoleGate is re-evaluated on every role change; it schedules either the
// push-to-talk window or the continuous signer stream, never both.
type RoleGate interface {
	SetRole(role call.Role)
	Stop()
}

// Controller orchestrates one participant's membership lifecycle:
// join/ready/leave/mutate handling, the offerer tie-break, and cleanup.
// The registry's verdicts are authoritative even when they contradict
// the controller's optimistic local state.
type Controller struct {
	mu sync.Mutex

	api  RoomAPI
	send Sender
	neg  *Negotiator
	gate RoleGate

	user     string
	roomID   string
	hostType call.Role

	state MembershipState
	pos   call.Position
	role  call.Role
	peer  string

	retriesLeft int

	// OnRefresh fires on each mutate event: chat state changed, refetch
	// it. It must have no negotiation side effects.
	OnRefresh func(roomID string)

	// OnForcedLeave fires when the peer's host leave (or room closure)
	// forces this session out.
	OnForcedLeave func(reason *RedirectError)
}

// NewController wires a controller over its collaborators. The gate may
// be nil when the caller has no capture pipeline.
func NewController(api RoomAPI, send Sender, neg *Negotiator, gate RoleGate, user, roomID string, retries int) *Controller {
	return &Controller{
		api:         api,
		send:        send,
		neg:         neg,
		gate:        gate,
		user:        user,
		roomID:      roomID,
		state:       NotJoined,
		retriesLeft: retries,
	}
}

// State returns the current membership state.
func (c *Controller) State() MembershipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Role returns the participant's communication role, valid once the
// room metadata has been seen.
func (c *Controller) Role() call.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Peer returns the remote participant's nickname, or "" while unknown.
func (c *Controller) Peer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Preflight consults the registry before attempting to join and
// short-circuits to a redirect error on a room-state conflict. This is
// an optimization, not a correctness guarantee: the join verdict
// belongs to the registry.
func (c *Controller) Preflight() error {
	info, err := c.api.Lookup(c.roomID)
	if err != nil {
		if roomapi.IsNotFound(err) {
			return &RedirectError{Reason: signaling.ReasonInvalidRoom, RoomID: c.roomID}
		}
		return NewError("room lookup", err)
	}

	if !info.Active {
		return &RedirectError{Reason: signaling.ReasonExpiredRoom, RoomID: c.roomID}
	}
	if len(info.Users) >= 2 && !contains(info.Users, c.user) {
		return &RedirectError{Reason: signaling.ReasonFullRoom, RoomID: c.roomID}
	}

	c.mu.Lock()
	c.hostType = info.HostType
	c.mu.Unlock()
	return nil
}

// Join sends the join event. Membership is confirmed by the relay's
// joined acknowledgement, not by the connection itself.
func (c *Controller) Join() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != NotJoined {
		return ErrAlreadyJoined
	}
	c.state = Joining
	c.send.Send(&signaling.Message{
		Type:   signaling.EventJoin,
		User:   c.user,
		RoomID: c.roomID,
	})
	return nil
}

// HandleJoined processes the relay's membership confirmation. If the
// peer is already present this side is the newly joined participant: it
// becomes READY and waits for the offer (the tie-break makes the other
// side the offerer).
func (c *Controller) HandleJoined(body *signaling.JoinedBody) error {
	c.mu.Lock()

	if c.state != Joining {
		c.mu.Unlock()
		return nil
	}

	c.applyRoomLocked(body.Users)
	c.state = Joined

	waitForOffer := len(body.Users) == 2
	if waitForOffer {
		c.state = Ready
	}
	slog.Info("joined room", "room", c.roomID, "role", c.role, "state", c.state.String())
	c.mu.Unlock()

	if err := c.neg.AcquireMedia(); err != nil {
		return err
	}

	c.armGate()
	return nil
}

// HandleReady reacts to the relay's peer-present push. Only the side
// already in the room receives it, so only that side offers: exactly
// one offer per round, no distributed lock. A duplicated ready is a
// no-op because the negotiator refuses a second offer.
func (c *Controller) HandleReady() error {
	c.mu.Lock()
	if c.state != Joined && c.state != Ready {
		c.mu.Unlock()
		return nil
	}
	c.state = Ready
	c.mu.Unlock()

	// The ready push carries no payload; learn the peer's identity from
	// refreshed room metadata.
	if info, err := c.api.Lookup(c.roomID); err == nil {
		c.mu.Lock()
		c.applyRoomLocked(info.Users)
		c.mu.Unlock()
		c.armGate()
	}

	return c.neg.StartOffer()
}

// HandleNegotiation forwards a data_transfer body to the state machine.
func (c *Controller) HandleNegotiation(body *signaling.NegotiationBody) error {
	return c.neg.HandleRemote(body)
}

// HandleMutate triggers the external chat refetch and nothing else.
func (c *Controller) HandleMutate(roomID string) {
	if c.OnRefresh != nil {
		c.OnRefresh(roomID)
	}
}

// HandlePeerLeft processes the peer's voluntary or forced exit. If the
// host left the room is closed and this side is forced out too; if the
// guest left the host reverts to waiting, with negotiation back at
// HAVE_LOCAL_MEDIA for the next peer. No ICE state is reused.
func (c *Controller) HandlePeerLeft(who string) {
	c.mu.Lock()

	if c.state == Left || (c.peer != "" && who != c.peer) {
		c.mu.Unlock()
		return
	}

	hostLeft := c.pos == call.PositionGuest
	c.peer = ""
	c.mu.Unlock()

	if hostLeft {
		slog.Info("host left, leaving room", "room", c.roomID)
		c.teardown()
		if c.OnForcedLeave != nil {
			c.OnForcedLeave(&RedirectError{Reason: signaling.ReasonExpiredRoom, RoomID: c.roomID})
		}
		return
	}

	slog.Info("guest left, waiting for a new peer", "room", c.roomID)
	c.neg.Reset()
	c.mu.Lock()
	c.state = Joined
	c.mu.Unlock()
}

// HandleDisconnect resets local negotiation state after a transport
// drop. It does not remove the user from the room; only an explicit
// leave does that. Returns the state the session should resume from if
// the transport reconnects and re-runs the join handshake.
func (c *Controller) HandleDisconnect() MembershipState {
	c.neg.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Left {
		c.state = NotJoined
		c.peer = ""
	}
	return c.state
}

// Leave is the explicit exit path: notify the relay, close the room if
// hosting, and release everything in one pass.
func (c *Controller) Leave() {
	c.mu.Lock()
	if c.state == Left || c.state == NotJoined {
		c.mu.Unlock()
		return
	}
	isHost := c.pos == call.PositionHost
	c.mu.Unlock()

	c.send.Send(&signaling.Message{
		Type:   signaling.EventLeave,
		User:   c.user,
		RoomID: c.roomID,
	})

	if isHost {
		if err := c.api.Close(c.roomID, c.user); err != nil {
			slog.Warn("failed to close room", "room", c.roomID, "err", err)
		}
	}

	c.teardown()
}

// teardown releases the connection object, stops media tracks, and
// lands in LEFT. Partial cleanup is a defect; everything goes at once.
func (c *Controller) teardown() {
	c.neg.Close()
	c.neg.ReleaseMedia()
	if c.gate != nil {
		c.gate.Stop()
	}

	c.mu.Lock()
	c.state = Left
	c.peer = ""
	c.mu.Unlock()
}

// RetryOffer consumes one retry after a timed-out round, restarting
// from HAVE_LOCAL_MEDIA while the room is still ready. Reports whether
// a new round was started.
func (c *Controller) RetryOffer() bool {
	c.mu.Lock()
	if c.state != Ready || c.retriesLeft <= 0 {
		c.mu.Unlock()
		return false
	}
	c.retriesLeft--
	c.mu.Unlock()

	c.neg.Reset()
	return c.neg.StartOffer() == nil
}

// applyRoomLocked records position, peer, and role from a room user
// snapshot. The role is only recomputed while the remote participant is
// unknown, so it can never flip mid-call.
func (c *Controller) applyRoomLocked(users []string) {
	if c.peer != "" {
		return
	}

	c.pos = call.PositionGuest
	if len(users) > 0 && users[0] == c.user {
		c.pos = call.PositionHost
	}
	c.role = call.Assign(c.pos, c.hostType)

	for _, u := range users {
		if u != c.user {
			c.peer = u
		}
	}
}

// armGate re-evaluates the capture gate for the current role.
func (c *Controller) armGate() {
	if c.gate == nil {
		return
	}
	c.mu.Lock()
	role := c.role
	c.mu.Unlock()

	if role.Valid() {
		c.gate.SetRole(role)
	}
}

func contains(users []string, user string) bool {
	for _, u := range users {
		if u == user {
			return true
		}
	}
	return false
}
