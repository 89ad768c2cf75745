package capture

// StaticFrames is a FrameSource that yields the same frame forever.
// Stands in for the camera buffer in the CLI and in tests.
type StaticFrames []byte

func (f StaticFrames) Next() ([]byte, error) {
	return f, nil
}

// DiscardSink drops every envelope. Used when no inference collaborator
// is attached.
type DiscardSink struct{}

func (DiscardSink) Write([]byte) error { return nil }
