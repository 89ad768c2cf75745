package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NichHarris/intera-client/internal/config"
	"github.com/NichHarris/intera-client/internal/roomapi"
	"github.com/NichHarris/intera-client/internal/session"
)

var (
	flagJoinDomain   string
	flagJoinSTUN     string
	flagJoinTURN     string
	flagJoinTURNUser string
	flagJoinTURNPass string
	flagJoinRelay    bool
	flagJoinRejoin   bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id|url> <nickname>",
	Short: "Join an existing meeting room as guest",
	Long: `Join an existing meeting room. The guest gets the role opposite to
the host's.

Examples:
  intera join amber-otter-quiet-harbor carol
  intera join https://intera.qzz.io/call-page/amber-otter-quiet-harbor carol`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return joinRoom(roomID, args[1])
	},
}

func joinRoom(roomID, nickname string) error {
	cfg, err := config.Load(config.Options{
		Domain:     flagJoinDomain,
		STUNServer: flagJoinSTUN,
		TURNServer: flagJoinTURN,
		TURNUser:   flagJoinTURNUser,
		TURNPass:   flagJoinTURNPass,
		ForceRelay: flagJoinRelay,
		Rejoin:     flagJoinRejoin,
	})
	if err != nil {
		return session.NewError("load config", err)
	}

	rooms := roomapi.NewClient(cfg.APIBaseURL)
	return runCall(cfg, rooms, nickname, roomID)
}

func parseRoomInput(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") {
		return extractRoomIDFromURL(input)
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", session.NewError("parse URL", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "call-page" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&flagJoinDomain, "domain", "", "Custom domain")
	joinCmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagJoinTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVar(&flagJoinRelay, "relay", false, "Force relay mode")
	joinCmd.Flags().BoolVar(&flagJoinRejoin, "rejoin", false, "Re-join automatically after a transient disconnect")
}
