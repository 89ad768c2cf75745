package signaling

import "log/slog"

// Handler routes incoming relay events to per-event channels.
// Disconnected is closed when the transport drops; that is the only way
// the engine learns about a transport-level disconnect.
type Handler struct {
	client       *Client
	Joined       chan *JoinedBody
	Ready        chan struct{}
	Negotiation  chan *NegotiationBody
	Mutate       chan string
	PeerLeft     chan string
	Errors       chan *ErrorBody
	Disconnected chan struct{}
	done         chan struct{}
	closed       bool
}

// NewHandler creates a new event router over the given client.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		Joined:       make(chan *JoinedBody, 1),
		Ready:        make(chan struct{}, 2),
		Negotiation:  make(chan *NegotiationBody, 32),
		Mutate:       make(chan string, 4),
		PeerLeft:     make(chan string, 1),
		Errors:       make(chan *ErrorBody, 1),
		Disconnected: make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// deliver hands a routed event to its channel, dropping it once the
// handler is closed. Frames can keep arriving between Close and the
// transport actually going down.
func deliver[T any](h *Handler, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-h.done:
	}
}

// Start listens to incoming messages and routes them until the
// transport drops.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {

		switch msg.Type {

		case EventJoined:
			var body JoinedBody
			if err := msg.DecodeBody(&body); err != nil {
				slog.Debug("dropping malformed joined body", "err", err)
				continue
			}
			deliver(h, h.Joined, &body)

		case EventReady:
			deliver(h, h.Ready, struct{}{})

		case EventDataTransfer:
			var body NegotiationBody
			if err := msg.DecodeBody(&body); err != nil {
				slog.Debug("dropping malformed negotiation body", "err", err)
				continue
			}
			deliver(h, h.Negotiation, &body)

		case EventMutate:
			deliver(h, h.Mutate, msg.RoomID)

		case EventLeave:
			deliver(h, h.PeerLeft, msg.User)

		case EventError:
			var body ErrorBody
			if err := msg.DecodeBody(&body); err != nil {
				deliver(h, h.Errors, &ErrorBody{Reason: "unknown"})
				continue
			}
			deliver(h, h.Errors, &body)

		default:
			slog.Debug("ignoring unknown event", "type", msg.Type)
		}
	}

	close(h.Disconnected)
}

// Close stops routing. The per-event channels stay open so late reads
// never see spurious zero values; Disconnected remains the terminal
// signal.
func (h *Handler) Close() {
	if h.closed {
		return
	}
	h.closed = true

	close(h.done)
}
