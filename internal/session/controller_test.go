package session

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NichHarris/intera-client/internal/call"
	"github.com/NichHarris/intera-client/internal/roomapi"
	"github.com/NichHarris/intera-client/internal/signaling"
)

// fakeRoomAPI serves canned registry state.
type fakeRoomAPI struct {
	mu        sync.Mutex
	info      *roomapi.RoomInfo
	lookupErr error
	closed    [][2]string
}

func (a *fakeRoomAPI) Lookup(roomID string) (*roomapi.RoomInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lookupErr != nil {
		return nil, a.lookupErr
	}
	return a.info, nil
}

func (a *fakeRoomAPI) Close(roomID, user string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = append(a.closed, [2]string{roomID, user})
	return nil
}

func (a *fakeRoomAPI) closeCalls() [][2]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// fakeGate records role evaluations.
type fakeGate struct {
	mu      sync.Mutex
	roles   []call.Role
	stopped bool
}

func (g *fakeGate) SetRole(role call.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles = append(g.roles, role)
}

func (g *fakeGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
}

func (g *fakeGate) lastRole() call.Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.roles) == 0 {
		return ""
	}
	return g.roles[len(g.roles)-1]
}

func (g *fakeGate) isStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

const testRoom = "amber-otter-quiet-harbor"

type controllerHarness struct {
	ctrl   *Controller
	neg    *Negotiator
	sender *fakeSender
	api    *fakeRoomAPI
	gate   *fakeGate
	media  *fakeMedia
}

func newHarness(t *testing.T, user string, info *roomapi.RoomInfo) *controllerHarness {
	t.Helper()

	sender := &fakeSender{}
	api := &fakeRoomAPI{info: info}
	gate := &fakeGate{}
	media := &fakeMedia{}
	neg := NewNegotiator(testConfig(), sender, user, testRoom, media)
	t.Cleanup(neg.Close)

	ctrl := NewController(api, sender, neg, gate, user, testRoom, 1)
	return &controllerHarness{ctrl: ctrl, neg: neg, sender: sender, api: api, gate: gate, media: media}
}

func roomWith(hostType call.Role, users ...string) *roomapi.RoomInfo {
	return &roomapi.RoomInfo{RoomID: testRoom, Users: users, HostType: hostType, Active: true}
}

// joinAs runs the preflight/join/joined handshake against the canned
// room state.
func (h *controllerHarness) joinAs(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Preflight())
	require.NoError(t, h.ctrl.Join())
	require.NoError(t, h.ctrl.HandleJoined(&signaling.JoinedBody{Users: h.api.info.Users}))
}

func TestPreflightVerdicts(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		info   *roomapi.RoomInfo
		err    error
		reason string
	}{
		{
			name:   "unknown room",
			user:   "bob",
			err:    &roomapi.StatusError{Code: http.StatusNotFound},
			reason: signaling.ReasonInvalidRoom,
		},
		{
			name:   "inactive room",
			user:   "bob",
			info:   &roomapi.RoomInfo{RoomID: testRoom, Users: nil, HostType: call.RoleASL, Active: false},
			reason: signaling.ReasonExpiredRoom,
		},
		{
			name:   "full room",
			user:   "carol",
			info:   roomWith(call.RoleASL, "alice", "bob"),
			reason: signaling.ReasonFullRoom,
		},
		{
			name: "full room but already a member",
			user: "bob",
			info: roomWith(call.RoleASL, "alice", "bob"),
		},
		{
			name: "open seat",
			user: "bob",
			info: roomWith(call.RoleASL, "alice"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.user, tt.info)
			h.api.lookupErr = tt.err

			err := h.ctrl.Preflight()
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			re, ok := AsRedirect(err)
			require.True(t, ok, "expected a redirect error, got %v", err)
			assert.Equal(t, tt.reason, re.Reason)
			assert.Equal(t, testRoom, re.RoomID)
		})
	}
}

func TestJoinSendsJoinOnce(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))

	require.NoError(t, h.ctrl.Join())
	assert.Equal(t, Joining, h.ctrl.State())

	joins := h.sender.events(signaling.EventJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, "alice", joins[0].User)
	assert.Equal(t, testRoom, joins[0].RoomID)

	assert.ErrorIs(t, h.ctrl.Join(), ErrAlreadyJoined)
}

func TestHostJoinsEmptyRoom(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleSTT, "alice"))
	h.joinAs(t)

	assert.Equal(t, Joined, h.ctrl.State())
	assert.Equal(t, call.RoleSTT, h.ctrl.Role())
	assert.Empty(t, h.ctrl.Peer())

	// Media is acquired and the capture gate is armed for the role.
	assert.Equal(t, StateHaveLocalMedia, h.neg.State())
	assert.Equal(t, call.RoleSTT, h.gate.lastRole())
}

// The joiner who finds a peer already present waits for the offer; the
// relay's ready push goes to the other side.
func TestGuestJoinsOccupiedRoomAndWaits(t *testing.T) {
	h := newHarness(t, "bob", roomWith(call.RoleASL, "alice", "bob"))
	h.joinAs(t)

	assert.Equal(t, Ready, h.ctrl.State())
	assert.Equal(t, call.RoleSTT, h.ctrl.Role())
	assert.Equal(t, "alice", h.ctrl.Peer())

	// Waiting side: local media held, no offer sent.
	assert.Equal(t, StateHaveLocalMedia, h.neg.State())
	assert.Zero(t, h.sender.countKind(signaling.KindOffer))
}

func TestReadyMakesResidentSideOffer(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)

	// The guest arrives; the registry now shows both seats taken.
	h.api.info = roomWith(call.RoleASL, "alice", "bob")

	require.NoError(t, h.ctrl.HandleReady())
	assert.Equal(t, Ready, h.ctrl.State())
	assert.Equal(t, "bob", h.ctrl.Peer())
	assert.Equal(t, call.RoleASL, h.ctrl.Role())
	assert.Equal(t, 1, h.sender.countKind(signaling.KindOffer))

	// A duplicated ready push changes nothing.
	require.NoError(t, h.ctrl.HandleReady())
	assert.Equal(t, 1, h.sender.countKind(signaling.KindOffer))
}

func TestReadyBeforeJoinIgnored(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))

	require.NoError(t, h.ctrl.HandleReady())
	assert.Equal(t, NotJoined, h.ctrl.State())
	assert.Empty(t, h.sender.negotiationKinds())
}

func TestRoleNeverFlipsMidCall(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)

	h.api.info = roomWith(call.RoleASL, "alice", "bob")
	require.NoError(t, h.ctrl.HandleReady())
	require.Equal(t, call.RoleASL, h.ctrl.Role())

	// Even a contradictory later snapshot must not reassign the role
	// while the peer is known.
	h.api.info = roomWith(call.RoleASL, "bob", "alice")
	require.NoError(t, h.ctrl.HandleReady())
	assert.Equal(t, call.RoleASL, h.ctrl.Role())
	assert.Equal(t, "bob", h.ctrl.Peer())
}

func TestCaptureFailureFailsJoin(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.media.err = assert.AnError

	require.NoError(t, h.ctrl.Join())
	err := h.ctrl.HandleJoined(&signaling.JoinedBody{Users: []string{"alice"}})
	assert.ErrorIs(t, err, ErrCaptureFailed)
}

func TestGuestLeavingRevertsHostToWaiting(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)
	h.api.info = roomWith(call.RoleASL, "alice", "bob")
	require.NoError(t, h.ctrl.HandleReady())

	h.ctrl.HandlePeerLeft("bob")

	assert.Equal(t, Joined, h.ctrl.State())
	assert.Empty(t, h.ctrl.Peer())
	// Negotiation restarts from held media for the next guest.
	assert.Equal(t, StateHaveLocalMedia, h.neg.State())
	assert.False(t, h.gate.isStopped())
}

func TestHostLeavingForcesGuestOut(t *testing.T) {
	h := newHarness(t, "bob", roomWith(call.RoleASL, "alice", "bob"))
	h.joinAs(t)

	var forced *RedirectError
	h.ctrl.OnForcedLeave = func(re *RedirectError) { forced = re }

	h.ctrl.HandlePeerLeft("alice")

	assert.Equal(t, Left, h.ctrl.State())
	require.NotNil(t, forced)
	assert.Equal(t, signaling.ReasonExpiredRoom, forced.Reason)
	assert.True(t, h.gate.isStopped())
	assert.Equal(t, 1, h.media.stopCount())
	// Forced out, not leaving voluntarily: no close call.
	assert.Empty(t, h.api.closeCalls())
}

func TestPeerLeftFromUnknownUserIgnored(t *testing.T) {
	h := newHarness(t, "bob", roomWith(call.RoleASL, "alice", "bob"))
	h.joinAs(t)

	h.ctrl.HandlePeerLeft("mallory")
	assert.Equal(t, Ready, h.ctrl.State())
	assert.Equal(t, "alice", h.ctrl.Peer())
}

func TestHostLeaveClosesRoom(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)

	h.ctrl.Leave()

	assert.Equal(t, Left, h.ctrl.State())
	require.Len(t, h.sender.events(signaling.EventLeave), 1)
	assert.Equal(t, [][2]string{{testRoom, "alice"}}, h.api.closeCalls())
	assert.True(t, h.gate.isStopped())
	assert.Equal(t, 1, h.media.stopCount())

	// Leaving twice must not notify twice.
	h.ctrl.Leave()
	assert.Len(t, h.sender.events(signaling.EventLeave), 1)
}

func TestGuestLeaveKeepsRoomOpen(t *testing.T) {
	h := newHarness(t, "bob", roomWith(call.RoleASL, "alice", "bob"))
	h.joinAs(t)

	h.ctrl.Leave()

	assert.Equal(t, Left, h.ctrl.State())
	require.Len(t, h.sender.events(signaling.EventLeave), 1)
	assert.Empty(t, h.api.closeCalls())
}

func TestMutateOnlyTriggersRefresh(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)

	var refreshed []string
	h.ctrl.OnRefresh = func(roomID string) { refreshed = append(refreshed, roomID) }

	before := len(h.sender.negotiationKinds())
	h.ctrl.HandleMutate(testRoom)
	h.ctrl.HandleMutate(testRoom)

	assert.Equal(t, []string{testRoom, testRoom}, refreshed)
	// No negotiation side effects, no state changes.
	assert.Len(t, h.sender.negotiationKinds(), before)
	assert.Equal(t, Joined, h.ctrl.State())
	assert.Equal(t, StateHaveLocalMedia, h.neg.State())
}

func TestDisconnectResetsWithoutLeaving(t *testing.T) {
	h := newHarness(t, "bob", roomWith(call.RoleASL, "alice", "bob"))
	h.joinAs(t)

	state := h.ctrl.HandleDisconnect()
	assert.Equal(t, NotJoined, state)
	assert.Empty(t, h.ctrl.Peer())
	// No leave was sent; the seat is still held by the registry.
	assert.Empty(t, h.sender.events(signaling.EventLeave))

	// The handshake can run again after reconnecting.
	require.NoError(t, h.ctrl.Join())
}

func TestDisconnectAfterLeaveStaysLeft(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)
	h.ctrl.Leave()

	assert.Equal(t, Left, h.ctrl.HandleDisconnect())
}

func TestRetryOfferConsumesBudget(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)
	h.api.info = roomWith(call.RoleASL, "alice", "bob")
	require.NoError(t, h.ctrl.HandleReady())
	require.Equal(t, 1, h.sender.countKind(signaling.KindOffer))

	// Simulate a timed-out round.
	h.neg.Close()

	assert.True(t, h.ctrl.RetryOffer())
	assert.Equal(t, 2, h.sender.countKind(signaling.KindOffer))

	h.neg.Close()
	assert.False(t, h.ctrl.RetryOffer(), "retry budget is spent")
	assert.Equal(t, 2, h.sender.countKind(signaling.KindOffer))
}

func TestRetryOfferRequiresReadyRoom(t *testing.T) {
	h := newHarness(t, "alice", roomWith(call.RoleASL, "alice"))
	h.joinAs(t)

	assert.False(t, h.ctrl.RetryOffer())
	assert.Zero(t, h.sender.countKind(signaling.KindOffer))
}
