package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/NichHarris/intera-client/internal/call"
)

// Notifier pushes a mutate event to a room's connected participants
// after a transcript append. Implemented by the relay hub.
type Notifier interface {
	NotifyMutate(roomID string)
}

// API exposes the registry over HTTP. The signaling relay stays purely
// event-based; room metadata and transcripts go through this
// request/response surface.
type API struct {
	reg      *Registry
	notifier Notifier
}

func NewAPI(reg *Registry, notifier Notifier) *API {
	return &API{reg: reg, notifier: notifier}
}

// Register installs the API routes on the given mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", a.handleCreate)
	mux.HandleFunc("GET /api/rooms/{id}", a.handleLookup)
	mux.HandleFunc("POST /api/rooms/{id}/close", a.handleClose)
	mux.HandleFunc("POST /api/rooms/{id}/messages", a.handleAppend)
}

type createRequest struct {
	User     string    `json:"user"`
	HostType call.Role `json:"host_type"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := a.reg.Create(req.User, req.HostType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("room created", "room", info.RoomID, "host", req.User, "host_type", req.HostType)
	writeJSON(w, http.StatusCreated, info)
}

func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	info, ok := a.reg.Lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type closeRequest struct {
	User string `json:"user"`
}

func (a *API) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := a.reg.Close(r.PathValue("id"), req.User)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotHost):
		writeError(w, http.StatusForbidden, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Info("room closed", "room", r.PathValue("id"), "by", req.User)
		w.WriteHeader(http.StatusNoContent)
	}
}

type appendRequest struct {
	ToUser  string    `json:"to_user"`
	Message string    `json:"message"`
	Type    call.Role `json:"type"`
}

func (a *API) handleAppend(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := a.reg.Append(roomID, req.ToUser, req.Message, req.Type)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrInactive):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Chat state changed: tell the room's participants to refetch.
	if a.notifier != nil {
		a.notifier.NotifyMutate(roomID)
	}

	writeJSON(w, http.StatusCreated, msg)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
