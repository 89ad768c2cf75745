package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "intera.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // optional, empty by default
	DefaultTURNUser = "intera"
	DefaultTURNPass = "intera-secret"

	// DefaultNegotiationTimeout bounds a single offer/answer round.
	// A stalled round surfaces a recoverable error instead of hanging.
	DefaultNegotiationTimeout = 30 * time.Second

	// DefaultNegotiationRetries is how many fresh rounds the offerer may
	// start after a timeout while the room is still ready.
	DefaultNegotiationRetries = 1
)

// Config holds application configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// WebSocketURL and APIBaseURL are constructed from the domain
	WebSocketURL string
	APIBaseURL   string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// NegotiationTimeout bounds a single offer/answer round.
	NegotiationTimeout time.Duration

	// NegotiationRetries bounds offerer retries after a timed-out round.
	NegotiationRetries int

	// Rejoin re-runs the join handshake automatically after the signaling
	// channel reconnects. Off by default: the user re-joins explicitly.
	Rejoin bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain             string
	STUNServer         string
	TURNServer         string
	TURNUser           string
	TURNPass           string
	ForceRelay         bool
	NegotiationTimeout time.Duration
	Rejoin             bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("INTERA_DOMAIN"), DefaultDomain)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)

	timeout := opts.NegotiationTimeout
	if timeout == 0 {
		if v := os.Getenv("NEGOTIATION_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid NEGOTIATION_TIMEOUT: %w", err)
			}
			timeout = d
		}
	}
	if timeout == 0 {
		timeout = DefaultNegotiationTimeout
	}

	retries := DefaultNegotiationRetries
	if v := os.Getenv("NEGOTIATION_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid NEGOTIATION_RETRIES: %q", v)
		}
		retries = n
	}

	rejoin := opts.Rejoin
	if !rejoin {
		rejoin = os.Getenv("REJOIN_ON_RECONNECT") == "true"
	}

	return &Config{
		Domain:             domain,
		WebSocketURL:       fmt.Sprintf("wss://%s/ws", domain),
		APIBaseURL:         fmt.Sprintf("https://%s/api", domain),
		STUNServer:         stunServer,
		TURNServer:         turnServer,
		TURNUser:           turnUser,
		TURNPass:           turnPass,
		ForceRelay:         opts.ForceRelay,
		NegotiationTimeout: timeout,
		NegotiationRetries: retries,
		Rejoin:             rejoin,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/call-page/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. TURNServer may
// be given as a bare hostname or with a turn: scheme.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
