// Package capture schedules the role-gated capture work: the speaker's
// press-and-hold window and the signer's continuous buffer stream. The
// two are mutually exclusive by role, enforced here at the point work
// is scheduled rather than in any UI layer.
package capture

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/NichHarris/intera-client/internal/call"
)

var (
	ErrNotSpeaker  = errors.New("push-to-talk requires the STT role")
	ErrWindowOpen  = errors.New("capture window already open")
	ErrNoWindow    = errors.New("no capture window open")
	ErrGateStopped = errors.New("gate stopped")
)

// Sink receives encoded envelopes. The inference collaborator sits
// behind it; the gate treats it as opaque.
type Sink interface {
	Write(data []byte) error
}

// FrameSource yields buffered media frames for the signer stream.
type FrameSource interface {
	Next() ([]byte, error)
}

// DefaultFrameInterval paces the signer stream.
const DefaultFrameInterval = 100 * time.Millisecond

// Gate owns the capture scheduling for one session. SetRole re-evaluates
// it; changing role stops the previous worker before anything new is
// scheduled, so the window and the stream can never run concurrently.
type Gate struct {
	mu sync.Mutex

	sink     Sink
	frames   FrameSource
	interval time.Duration

	role     call.Role
	hasRole  bool
	stopped  bool
	streamer chan struct{} // closed to stop the signer worker

	windowOpenedAt time.Time
	windowOpen     bool
}

// New creates an idle gate. It schedules nothing until SetRole.
func New(sink Sink, frames FrameSource) *Gate {
	return &Gate{
		sink:     sink,
		frames:   frames,
		interval: DefaultFrameInterval,
	}
}

// SetRole re-evaluates the gate for the given role:
// ASL starts the continuous stream, STT enables window arming.
func (g *Gate) SetRole(role call.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped || (g.hasRole && g.role == role) {
		return
	}

	g.stopWorkerLocked()
	g.role = role
	g.hasRole = true

	if role == call.RoleASL {
		g.streamer = make(chan struct{})
		go g.stream(g.streamer)
	}
	slog.Debug("capture gate armed", "role", role)
}

// Press opens the speaker's press-and-hold capture window.
func (g *Gate) Press() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return ErrGateStopped
	}
	if !g.hasRole || g.role != call.RoleSTT {
		return ErrNotSpeaker
	}
	if g.windowOpen {
		return ErrWindowOpen
	}

	g.windowOpen = true
	g.windowOpenedAt = time.Now()
	return nil
}

// Release closes the window and reports its bounds to the sink. The
// speech-to-text result for the window arrives out of band.
func (g *Gate) Release() (time.Duration, error) {
	g.mu.Lock()
	if !g.windowOpen {
		g.mu.Unlock()
		return 0, ErrNoWindow
	}
	opened := g.windowOpenedAt
	g.windowOpen = false
	g.mu.Unlock()

	closed := time.Now()
	env, err := NewEnvelope(EnvelopeTypeWindow, WindowPayload{
		OpenedAt: opened.UnixMilli(),
		ClosedAt: closed.UnixMilli(),
	})
	if err == nil {
		g.write(env)
	}
	return closed.Sub(opened), nil
}

// Streaming reports whether the signer worker is running.
func (g *Gate) Streaming() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.streamer != nil
}

// WindowOpen reports whether a push-to-talk window is currently open.
func (g *Gate) WindowOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.windowOpen
}

// Stop halts all scheduled work. The gate cannot be rearmed afterwards.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopWorkerLocked()
	g.windowOpen = false
	g.stopped = true
}

func (g *Gate) stopWorkerLocked() {
	if g.streamer != nil {
		close(g.streamer)
		g.streamer = nil
	}
	g.windowOpen = false
}

// stream is the signer worker: pull a frame, wrap it, hand it to the
// sink, at a fixed cadence until stopped.
func (g *Gate) stream(stop chan struct{}) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := g.frames.Next()
			if err != nil {
				slog.Warn("frame source failed, stopping stream", "err", err)
				return
			}

			env, err := NewEnvelope(EnvelopeTypeFrame, FramePayload{
				Sequence:  seq,
				Timestamp: time.Now().UnixMilli(),
				Bytes:     frame,
			})
			if err != nil {
				continue
			}
			seq++
			g.write(env)
		}
	}
}

func (g *Gate) write(env Envelope) {
	data, err := msgpack.Marshal(env)
	if err != nil {
		return
	}
	if err := g.sink.Write(data); err != nil {
		slog.Debug("sink write failed", "err", err)
	}
}
