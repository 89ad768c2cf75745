package roomapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NichHarris/intera-client/internal/call"
)

func TestCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rooms", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req["user"])
		assert.Equal(t, "ASL", req["host_type"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(RoomInfo{
			RoomID:   "amber-otter-quiet-harbor",
			Users:    []string{"alice"},
			HostType: call.RoleASL,
			Active:   true,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/api")
	info, err := client.Create("alice", call.RoleASL)
	require.NoError(t, err)
	assert.Equal(t, "amber-otter-quiet-harbor", info.RoomID)
	assert.Equal(t, []string{"alice"}, info.Users)
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/api")
	_, err := client.Lookup("no-such-room")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "room not found")
}

func TestAppendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rooms/amber-otter-quiet-harbor/messages", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bob", req["to_user"])
		assert.Equal(t, "hello", req["message"])
		assert.Equal(t, "STT", req["type"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{ID: "m1", ToUser: "bob", Text: "hello", Type: call.RoleSTT})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/api")
	msg, err := client.Append("amber-otter-quiet-harbor", "bob", "hello", call.RoleSTT)
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hello", msg.Text)
}

func TestCloseForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "only the host may close the room"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/api")
	err := client.Close("amber-otter-quiet-harbor", "bob")
	require.Error(t, err)

	se, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.False(t, IsNotFound(err))
}
