package signaling

import "encoding/json"

// Message is the envelope for every event exchanged with the relay.
// Body is event-specific; for data_transfer it carries a NegotiationBody.
type Message struct {
	Type   string          `json:"type"`
	User   string          `json:"user,omitempty"`
	RoomID string          `json:"room_id,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Event type constants.
const (
	EventJoin         = "join"
	EventReady        = "ready"
	EventDataTransfer = "data_transfer"
	EventMutate       = "mutate"
	EventLeave        = "leave"

	EventJoined = "joined"
	EventError  = "error"
)

// Negotiation payload kinds carried inside data_transfer bodies.
const (
	KindOffer     = "offer"
	KindAnswer    = "answer"
	KindCandidate = "candidate"
)

// NegotiationBody is the nested payload of a data_transfer event.
// SDP is set for offer/answer, Candidate for trickled ICE candidates.
type NegotiationBody struct {
	Kind      string          `json:"kind"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// JoinedBody is the relay's acknowledgement of a join. Users is the
// room's ordered member list at the time of joining (index 0 is host).
type JoinedBody struct {
	Users []string `json:"users"`
}

// ErrorBody carries a reason-coded rejection from the relay.
type ErrorBody struct {
	Reason string `json:"reason"`
	RoomID string `json:"room_id,omitempty"`
}

// Redirect reason codes for room-state conflicts.
const (
	ReasonInvalidRoom = "invalid_room"
	ReasonExpiredRoom = "expired_room"
	ReasonFullRoom    = "full_room"
)

// NewMessage builds a message envelope with a JSON-encoded body.
func NewMessage(event, user, roomID string, body any) (*Message, error) {
	msg := &Message{Type: event, User: user, RoomID: roomID}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		msg.Body = b
	}
	return msg, nil
}

// DecodeBody decodes the message body into the provided struct.
func (m *Message) DecodeBody(v any) error {
	return json.Unmarshal(m.Body, v)
}
