// Package roomapi is the participant-side consumer of the room registry
// HTTP API. It deliberately mirrors the wire types instead of importing
// the server's, so the engine only depends on the documented schema.
package roomapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/NichHarris/intera-client/internal/call"
)

// RoomInfo is the registry's view of a room. Users is ordered: index 0
// is the host.
type RoomInfo struct {
	RoomID       string    `json:"room_id"`
	Users        []string  `json:"users"`
	HostType     call.Role `json:"host_type"`
	Active       bool      `json:"active"`
	MessagesInfo []Message `json:"messages_info"`
}

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	ToUser    string    `json:"to_user"`
	Text      string    `json:"message"`
	Type      call.Role `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusError is a non-2xx response from the registry.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("registry returned %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("registry returned %d", e.Code)
}

// IsNotFound reports whether err is a 404 from the registry.
func IsNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}

// Client is a typed HTTP client for the registry API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a registry API client rooted at baseURL
// (e.g. "https://intera.qzz.io/api").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Create makes a new room hosted by user with the given host role.
func (c *Client) Create(user string, hostType call.Role) (*RoomInfo, error) {
	body := map[string]any{"user": user, "host_type": hostType}
	var info RoomInfo
	if err := c.post(c.baseURL+"/rooms", body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Lookup fetches the room's current state.
func (c *Client) Lookup(roomID string) (*RoomInfo, error) {
	resp, err := c.http.Get(fmt.Sprintf("%s/rooms/%s", c.baseURL, roomID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var info RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Close deactivates the room. Host only.
func (c *Client) Close(roomID, user string) error {
	return c.post(fmt.Sprintf("%s/rooms/%s/close", c.baseURL, roomID), map[string]any{"user": user}, nil)
}

// Append records a transcript message; the registry broadcasts mutate
// to the room's participants on success.
func (c *Client) Append(roomID, toUser, text string, msgType call.Role) (*Message, error) {
	body := map[string]any{"to_user": toUser, "message": text, "type": msgType}
	var msg Message
	if err := c.post(fmt.Sprintf("%s/rooms/%s/messages", c.baseURL, roomID), body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) post(url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return &StatusError{Code: resp.StatusCode, Msg: payload.Error}
}
