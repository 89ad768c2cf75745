package session

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// MediaSource is the capture-device collaborator boundary. Acquisition
// failure is fatal to starting a call; the engine never retries it.
type MediaSource interface {
	// Tracks acquires the local media tracks to attach to the peer
	// connection.
	Tracks() ([]webrtc.TrackLocal, error)

	// Stop releases the capture device.
	Stop() error
}

// SyntheticSource is a headless stand-in for a camera and microphone:
// it produces a video and an audio track fed with silence/black samples
// at a fixed cadence. Used by the CLI and by tests; a browser or device
// integration supplies a real MediaSource instead.
type SyntheticSource struct {
	mu      sync.Mutex
	tracks  []webrtc.TrackLocal
	stop    chan struct{}
	stopped bool
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{stop: make(chan struct{})}
}

func (s *SyntheticSource) Tracks() ([]webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracks != nil {
		return s.tracks, nil
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "intera",
	)
	if err != nil {
		return nil, err
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "intera",
	)
	if err != nil {
		return nil, err
	}

	go s.pump(video, 33*time.Millisecond)
	go s.pump(audio, 20*time.Millisecond)

	s.tracks = []webrtc.TrackLocal{video, audio}
	return s.tracks, nil
}

// pump writes placeholder samples so the track keeps producing RTP.
func (s *SyntheticSource) pump(track *webrtc.TrackLocalStaticSample, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = track.WriteSample(media.Sample{Data: []byte{0x00}, Duration: interval})
		}
	}
}

func (s *SyntheticSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	return nil
}
