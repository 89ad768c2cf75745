package capture

import "github.com/vmihailenco/msgpack/v5"

// Envelope wraps every frame handed to the inference sink.
type Envelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

const (
	// EnvelopeTypeFrame carries one buffered video frame from the
	// signer's continuous stream.
	EnvelopeTypeFrame = "frame"

	// EnvelopeTypeWindow carries the bounds of a finished push-to-talk
	// capture window.
	EnvelopeTypeWindow = "window"
)

// FramePayload is one frame of the signer's media buffer.
type FramePayload struct {
	Sequence  uint64 `msgpack:"sequence"`
	Timestamp int64  `msgpack:"timestamp"`
	Bytes     []byte `msgpack:"bytes"`
}

// WindowPayload marks a completed press-and-hold capture window.
type WindowPayload struct {
	OpenedAt int64 `msgpack:"openedAt"`
	ClosedAt int64 `msgpack:"closedAt"`
}

// DecodePayload decodes the envelope payload into the provided struct.
func (e Envelope) DecodePayload(v any) error {
	return msgpack.Unmarshal(e.Payload, v)
}

// NewEnvelope creates an Envelope with the given type and payload.
func NewEnvelope(t string, payload any) (Envelope, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Type:    t,
		Payload: b,
	}, nil
}
