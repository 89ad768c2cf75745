package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/NichHarris/intera-client/internal/call"
)

// chanSink buffers every envelope write so tests can wait on it.
type chanSink struct {
	writes chan []byte
}

func newChanSink() *chanSink {
	return &chanSink{writes: make(chan []byte, 64)}
}

func (s *chanSink) Write(data []byte) error {
	s.writes <- data
	return nil
}

func (s *chanSink) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case data := <-s.writes:
		var env Envelope
		require.NoError(t, msgpack.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope reached the sink")
		return Envelope{}
	}
}

func TestPressRequiresSpeakerRole(t *testing.T) {
	g := New(DiscardSink{}, StaticFrames{0x01})
	defer g.Stop()

	// No role assigned yet.
	assert.ErrorIs(t, g.Press(), ErrNotSpeaker)

	g.SetRole(call.RoleASL)
	assert.ErrorIs(t, g.Press(), ErrNotSpeaker)
}

func TestPressReleaseWindow(t *testing.T) {
	sink := newChanSink()
	g := New(sink, StaticFrames{0x01})
	defer g.Stop()
	g.SetRole(call.RoleSTT)

	require.NoError(t, g.Press())
	assert.True(t, g.WindowOpen())
	assert.ErrorIs(t, g.Press(), ErrWindowOpen)

	held, err := g.Release()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, held, time.Duration(0))
	assert.False(t, g.WindowOpen())

	env := sink.next(t)
	assert.Equal(t, EnvelopeTypeWindow, env.Type)
	var payload WindowPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.GreaterOrEqual(t, payload.ClosedAt, payload.OpenedAt)

	_, err = g.Release()
	assert.ErrorIs(t, err, ErrNoWindow)
}

func TestSignerStreamDeliversFrames(t *testing.T) {
	sink := newChanSink()
	g := New(sink, StaticFrames{0xAB, 0xCD})
	g.interval = 5 * time.Millisecond
	defer g.Stop()

	g.SetRole(call.RoleASL)
	assert.True(t, g.Streaming())

	first := sink.next(t)
	second := sink.next(t)
	require.Equal(t, EnvelopeTypeFrame, first.Type)
	require.Equal(t, EnvelopeTypeFrame, second.Type)

	var p1, p2 FramePayload
	require.NoError(t, first.DecodePayload(&p1))
	require.NoError(t, second.DecodePayload(&p2))
	assert.Equal(t, []byte{0xAB, 0xCD}, p1.Bytes)
	assert.Equal(t, p1.Sequence+1, p2.Sequence)
}

func TestRoleSwitchIsExclusive(t *testing.T) {
	g := New(DiscardSink{}, StaticFrames{0x01})
	g.interval = 5 * time.Millisecond
	defer g.Stop()

	g.SetRole(call.RoleASL)
	require.True(t, g.Streaming())

	// Switching to speaker stops the stream and enables the window.
	g.SetRole(call.RoleSTT)
	assert.False(t, g.Streaming())
	require.NoError(t, g.Press())

	// Switching back force-closes the open window and restarts the
	// stream; push-to-talk is no longer available.
	g.SetRole(call.RoleASL)
	assert.False(t, g.WindowOpen())
	assert.True(t, g.Streaming())
	assert.ErrorIs(t, g.Press(), ErrNotSpeaker)
}

func TestSetRoleSameRoleKeepsWorker(t *testing.T) {
	g := New(DiscardSink{}, StaticFrames{0x01})
	g.interval = 5 * time.Millisecond
	defer g.Stop()

	g.SetRole(call.RoleASL)
	require.True(t, g.Streaming())
	g.SetRole(call.RoleASL)
	assert.True(t, g.Streaming())
}

func TestStopIsTerminal(t *testing.T) {
	g := New(DiscardSink{}, StaticFrames{0x01})
	g.SetRole(call.RoleSTT)
	require.NoError(t, g.Press())

	g.Stop()
	assert.False(t, g.WindowOpen())
	assert.False(t, g.Streaming())
	assert.ErrorIs(t, g.Press(), ErrGateStopped)

	g.SetRole(call.RoleASL)
	assert.False(t, g.Streaming())
}
