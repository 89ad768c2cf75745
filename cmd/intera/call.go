package main

import (
	"bufio"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/NichHarris/intera-client/internal/call"
	"github.com/NichHarris/intera-client/internal/capture"
	"github.com/NichHarris/intera-client/internal/config"
	"github.com/NichHarris/intera-client/internal/roomapi"
	"github.com/NichHarris/intera-client/internal/session"
	"github.com/NichHarris/intera-client/internal/signaling"
	"github.com/NichHarris/intera-client/internal/ui"
)

// runCall drives a participant session until the user leaves, the host
// closes the room, or the transport drops without rejoin configured.
func runCall(cfg *config.Config, rooms *roomapi.Client, nickname, roomID string) error {
	media := session.NewSyntheticSource()
	defer media.Stop()

	gate := capture.New(capture.DiscardSink{}, capture.StaticFrames{0x00})
	defer gate.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	lines := make(chan string)
	go readLines(lines)

	for {
		rejoin, err := runSession(cfg, rooms, nickname, roomID, media, gate, interrupt, lines)
		if err != nil || !rejoin {
			return err
		}
		ui.PrintWarning("Connection lost, re-joining...")
	}
}

// runSession runs one connection's worth of the session: connect,
// join, then react to relay events until something ends the call.
// Reports whether the caller should reconnect and re-run the handshake.
func runSession(
	cfg *config.Config,
	rooms *roomapi.Client,
	nickname, roomID string,
	media session.MediaSource,
	gate *capture.Gate,
	interrupt <-chan os.Signal,
	lines <-chan string,
) (bool, error) {
	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return false, session.NewError("connect to relay", err)
	}
	defer client.Close()

	handler := signaling.NewHandler(client)
	go handler.Start()
	defer handler.Close()

	neg := session.NewNegotiator(cfg, client, nickname, roomID, media)
	ctrl := session.NewController(rooms, client, neg, gate, nickname, roomID, cfg.NegotiationRetries)

	negErrs := make(chan error, 4)
	neg.OnError = func(err error) { negErrs <- err }
	neg.OnConnected = func(track *webrtc.TrackRemote) {
		ui.PrintSuccessf("Media connected (remote %s track)", track.Kind())
	}

	ctrl.OnRefresh = func(roomID string) {
		info, err := rooms.Lookup(roomID)
		if err != nil {
			ui.PrintWarning("Failed to refresh transcript: " + err.Error())
			return
		}
		ui.RenderTranscript(info.MessagesInfo)
	}

	forced := make(chan *session.RedirectError, 1)
	ctrl.OnForcedLeave = func(re *session.RedirectError) { forced <- re }

	if err := ctrl.Preflight(); err != nil {
		return false, err
	}
	if err := ctrl.Join(); err != nil {
		return false, err
	}

	for {
		select {
		case body := <-handler.Joined:
			// Capture failure here is fatal to starting the call.
			if err := ctrl.HandleJoined(body); err != nil {
				return false, err
			}
			if ctrl.State() == session.Ready {
				ui.PrintInfof("Peer present. Your role: %s", ctrl.Role())
			} else {
				ui.PrintInfof("Waiting for a guest... Your role: %s", ctrl.Role())
			}

		case <-handler.Ready:
			if err := ctrl.HandleReady(); err != nil {
				// Negotiation failures abort the round but not the
				// session; a fresh ready signal starts over.
				ui.PrintError(err.Error())
			} else {
				ui.PrintInfof("Guest arrived: %s. Negotiating...", ctrl.Peer())
			}

		case body := <-handler.Negotiation:
			if err := ctrl.HandleNegotiation(body); err != nil {
				ui.PrintError(err.Error())
			}

		case changed := <-handler.Mutate:
			ctrl.HandleMutate(changed)

		case who := <-handler.PeerLeft:
			ctrl.HandlePeerLeft(who)
			select {
			case re := <-forced:
				return false, re
			default:
				ui.PrintInfof("%s left; waiting for a new guest...", who)
			}

		case errBody := <-handler.Errors:
			return false, &session.RedirectError{Reason: errBody.Reason, RoomID: errBody.RoomID}

		case <-handler.Disconnected:
			state := ctrl.HandleDisconnect()
			if cfg.Rejoin && state != session.Left {
				return true, nil
			}
			return false, session.WrapError("signaling channel", session.ErrSignalingError, "transport dropped")

		case err := <-negErrs:
			if errors.Is(err, session.ErrNegotiationTimeout) && ctrl.RetryOffer() {
				ui.PrintWarning("Negotiation timed out, retrying...")
				continue
			}
			ui.PrintError(err.Error())

		case line := <-lines:
			speak(ctrl, gate, rooms, roomID, line)

		case <-interrupt:
			ctrl.Leave()
			ui.PrintInfo("Left the call")
			return false, nil
		}
	}
}

// speak runs one push-to-talk window for the speaker: open the window,
// append the text to the room transcript (which makes the registry push
// mutate to both sides), close the window.
func speak(ctrl *session.Controller, gate *capture.Gate, rooms *roomapi.Client, roomID, line string) {
	if line == "" {
		return
	}

	if ctrl.Role() != call.RoleSTT {
		ui.PrintInfo("You are the signer; the stream is continuous and chat comes from translation")
		return
	}

	if err := gate.Press(); err != nil {
		ui.PrintWarning(err.Error())
		return
	}
	defer gate.Release()

	if _, err := rooms.Append(roomID, ctrl.Peer(), line, call.RoleSTT); err != nil {
		// Transcript append failure: notify, leave local state unchanged.
		ui.PrintWarning("Failed to send message: " + err.Error())
	}
}

func readLines(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- strings.TrimSpace(scanner.Text())
	}
}
