package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/NichHarris/intera-client/internal/config"
	"github.com/NichHarris/intera-client/internal/signaling"
)

// Sender is the outbound half of the signaling channel. Sends are
// fire-and-forget.
type Sender interface {
	Send(msg *signaling.Message)
}

// NegotiationState tracks one participant's progress through a single
// offer/answer round.
type NegotiationState int

const (
	StateIdle NegotiationState = iota
	StateHaveLocalMedia
	StateOffering
	StateAnswering
	StateConnected
	StateClosed
)

func (s NegotiationState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHaveLocalMedia:
		return "HAVE_LOCAL_MEDIA"
	case StateOffering:
		return "OFFERING"
	case StateAnswering:
		return "ANSWERING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// maxPendingCandidates bounds the early-arrival queue. A legitimate
// round produces far fewer; overflow is dropped with a diagnostic.
const maxPendingCandidates = 64

// Negotiator drives the WebRTC offer/answer/ICE exchange for one
// participant session. The peer connection is a resource exclusively
// owned by this instance; replacing it happens only through Close or
// Reset, never piecemeal.
//
// Candidates arriving before the remote description exists are queued
// and replayed in arrival order once it is set.
type Negotiator struct {
	mu sync.Mutex

	cfg    *config.Config
	send   Sender
	user   string
	roomID string
	media  MediaSource

	state   NegotiationState
	pc      *webrtc.PeerConnection
	tracks  []webrtc.TrackLocal
	pending []webrtc.ICECandidateInit
	offered bool
	timer   *time.Timer

	remoteReady bool

	// OnConnected fires once per round, on the first remote track.
	OnConnected func(track *webrtc.TrackRemote)

	// OnError receives negotiation failures. The round is already
	// aborted by the time it fires; a fresh ready signal starts a new one.
	OnError func(err error)
}

// NewNegotiator creates a negotiation state machine in IDLE.
func NewNegotiator(cfg *config.Config, send Sender, user, roomID string, media MediaSource) *Negotiator {
	return &Negotiator{
		cfg:    cfg,
		send:   send,
		user:   user,
		roomID: roomID,
		media:  media,
		state:  StateIdle,
	}
}

// State returns the current negotiation state.
func (n *Negotiator) State() NegotiationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// RemoteReady reports whether a remote media track has been observed
// this round.
func (n *Negotiator) RemoteReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remoteReady
}

// AcquireMedia transitions IDLE -> HAVE_LOCAL_MEDIA. Capture failure is
// fatal to call start: reported, never retried here.
func (n *Negotiator) AcquireMedia() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return nil
	}

	tracks, err := n.media.Tracks()
	if err != nil {
		return WrapError("acquire media", ErrCaptureFailed, err.Error())
	}
	n.tracks = tracks
	n.state = StateHaveLocalMedia
	return nil
}

// StartOffer begins the offerer path. It is a no-op unless the machine
// holds local media and has not yet offered this round, which is what
// keeps a duplicated ready push from producing a second offer.
func (n *Negotiator) StartOffer() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateHaveLocalMedia || n.offered {
		slog.Debug("ignoring offer trigger", "state", n.state.String(), "offered", n.offered)
		return nil
	}

	if err := n.buildPeerConnection(); err != nil {
		return n.failLocked("create peer connection", err)
	}

	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return n.failLocked("create offer", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return n.failLocked("set local description", err)
	}

	n.offered = true
	n.state = StateOffering
	n.armTimeout()
	n.sendNegotiation(&signaling.NegotiationBody{Kind: signaling.KindOffer, SDP: offer.SDP})
	return nil
}

// HandleRemote processes one inbound negotiation payload. Unknown kinds
// are logged and ignored; they must never take the machine down.
func (n *Negotiator) HandleRemote(body *signaling.NegotiationBody) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch body.Kind {
	case signaling.KindOffer:
		return n.handleOfferLocked(body)
	case signaling.KindAnswer:
		return n.handleAnswerLocked(body)
	case signaling.KindCandidate:
		return n.handleCandidateLocked(body)
	default:
		slog.Debug("ignoring unknown negotiation payload", "kind", body.Kind)
		return nil
	}
}

// handleOfferLocked runs the answerer path: apply the remote offer,
// produce an answer, start trickling.
func (n *Negotiator) handleOfferLocked(body *signaling.NegotiationBody) error {
	if n.state != StateHaveLocalMedia {
		slog.Debug("ignoring offer", "state", n.state.String())
		return nil
	}

	if n.pc == nil {
		if err := n.buildPeerConnection(); err != nil {
			return n.failLocked("create peer connection", err)
		}
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: body.SDP}
	if err := n.pc.SetRemoteDescription(offer); err != nil {
		return n.failLocked("set remote description", err)
	}
	n.flushPendingLocked()

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return n.failLocked("create answer", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return n.failLocked("set local description", err)
	}

	n.state = StateAnswering
	n.armTimeout()
	n.sendNegotiation(&signaling.NegotiationBody{Kind: signaling.KindAnswer, SDP: answer.SDP})
	return nil
}

// handleAnswerLocked completes the offerer's description exchange. An
// answer must follow exactly one prior offer; anything else is ignored.
func (n *Negotiator) handleAnswerLocked(body *signaling.NegotiationBody) error {
	if n.state != StateOffering {
		slog.Debug("ignoring answer", "state", n.state.String())
		return nil
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: body.SDP}
	if err := n.pc.SetRemoteDescription(answer); err != nil {
		return n.failLocked("set remote description", err)
	}
	n.flushPendingLocked()
	return nil
}

// handleCandidateLocked applies a trickled candidate, queueing it if
// the connection or remote description does not exist yet.
func (n *Negotiator) handleCandidateLocked(body *signaling.NegotiationBody) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(body.Candidate, &init); err != nil {
		slog.Debug("dropping malformed candidate", "err", err)
		return nil
	}

	if n.pc == nil || n.pc.RemoteDescription() == nil {
		if len(n.pending) >= maxPendingCandidates {
			slog.Warn("candidate queue full, dropping candidate")
			return nil
		}
		n.pending = append(n.pending, init)
		return nil
	}

	if err := n.pc.AddICECandidate(init); err != nil {
		slog.Warn("failed to add candidate", "err", err)
	}
	return nil
}

// flushPendingLocked replays queued candidates in arrival order.
func (n *Negotiator) flushPendingLocked() {
	for _, init := range n.pending {
		if err := n.pc.AddICECandidate(init); err != nil {
			slog.Warn("failed to add queued candidate", "err", err)
		}
	}
	n.pending = nil
}

// buildPeerConnection constructs the owned connection object, attaches
// the local tracks, and wires trickling and the connected transition.
func (n *Negotiator) buildPeerConnection() error {
	iceServers := []webrtc.ICEServer{{URLs: n.cfg.GetSTUNServers()}}

	if turn := n.cfg.GetTURNServers(); turn != nil {
		username, password := n.cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if n.cfg.ForceRelay && n.cfg.GetTURNServers() != nil {
		policy = webrtc.ICETransportPolicyRelay
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return err
	}

	for _, track := range n.tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return err
		}
	}

	// Trickle each candidate the moment it is discovered. No batching,
	// no waiting for gathering to complete.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		raw, err := json.Marshal(init)
		if err != nil {
			return
		}
		n.sendNegotiation(&signaling.NegotiationBody{Kind: signaling.KindCandidate, Candidate: raw})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		n.mu.Lock()
		first := n.state == StateOffering || n.state == StateAnswering
		if first {
			n.state = StateConnected
			n.remoteReady = true
			n.disarmTimeout()
		}
		cb := n.OnConnected
		n.mu.Unlock()

		if first && cb != nil {
			cb(track)
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateFailed {
			n.mu.Lock()
			err := n.failLocked("ice transport", ErrConnectionFailed)
			cb := n.OnError
			n.mu.Unlock()
			if cb != nil && err != nil {
				cb(err)
			}
		}
	})

	n.pc = pc
	return nil
}

// armTimeout bounds the round. A stalled exchange surfaces a
// recoverable error instead of leaving the session waiting forever.
func (n *Negotiator) armTimeout() {
	n.disarmTimeout()
	n.timer = time.AfterFunc(n.cfg.NegotiationTimeout, func() {
		n.mu.Lock()
		stalled := n.state == StateOffering || n.state == StateAnswering
		var err error
		if stalled {
			err = n.failLocked("negotiate", ErrNegotiationTimeout)
		}
		cb := n.OnError
		n.mu.Unlock()

		if stalled && cb != nil && err != nil {
			cb(err)
		}
	})
}

func (n *Negotiator) disarmTimeout() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// failLocked aborts the round: one atomic teardown of the connection
// object, never scattered partial cleanup.
func (n *Negotiator) failLocked(op string, err error) error {
	n.closeLocked()
	return NewError(op, err)
}

func (n *Negotiator) closeLocked() {
	n.disarmTimeout()
	if n.pc != nil {
		n.pc.Close()
		n.pc = nil
	}
	n.pending = nil
	n.offered = false
	n.remoteReady = false
	n.state = StateClosed
}

// Close releases the connection object and stops trickling. Entered on
// explicit leave, transport disconnect, or unrecoverable error.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closeLocked()
}

// Reset prepares the machine for a new round with a (possibly new)
// remote peer. No ICE state survives; if the local media tracks are
// still held the machine lands back in HAVE_LOCAL_MEDIA, otherwise IDLE.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closeLocked()
	if n.tracks != nil {
		n.state = StateHaveLocalMedia
	} else {
		n.state = StateIdle
	}
}

// ReleaseMedia stops the capture source. Called on final teardown.
func (n *Negotiator) ReleaseMedia() {
	n.mu.Lock()
	tracks := n.tracks
	n.tracks = nil
	n.mu.Unlock()

	if tracks != nil {
		if err := n.media.Stop(); err != nil {
			slog.Warn("failed to stop media source", "err", err)
		}
	}
}

func (n *Negotiator) sendNegotiation(body *signaling.NegotiationBody) {
	msg, err := signaling.NewMessage(signaling.EventDataTransfer, n.user, n.roomID, body)
	if err != nil {
		slog.Error("failed to encode negotiation payload", "err", err)
		return
	}
	n.send.Send(msg)
}
