package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NichHarris/intera-client/internal/call"
	"github.com/NichHarris/intera-client/internal/config"
	"github.com/NichHarris/intera-client/internal/roomapi"
	"github.com/NichHarris/intera-client/internal/session"
	"github.com/NichHarris/intera-client/internal/ui"
)

var (
	flagHostRole     string
	flagHostDomain   string
	flagHostSTUN     string
	flagHostTURN     string
	flagHostTURNUser string
	flagHostTURNPass string
	flagHostRelay    bool
	flagHostRejoin   bool
)

var hostCmd = &cobra.Command{
	Use:   "host <nickname>",
	Short: "Create a meeting room and wait for a guest",
	Long: `Create a meeting room, join it as host, and wait for a guest.

The --role flag picks the host's communication role; the guest
automatically gets the opposite one.

Examples:
  intera host alice --role ASL
  intera host bob --role STT`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostType := call.Role(flagHostRole)
		if !hostType.Valid() {
			return fmt.Errorf("invalid role %q: must be ASL or STT", flagHostRole)
		}
		return hostRoom(args[0], hostType)
	},
}

func hostRoom(nickname string, hostType call.Role) error {
	cfg, err := config.Load(config.Options{
		Domain:     flagHostDomain,
		STUNServer: flagHostSTUN,
		TURNServer: flagHostTURN,
		TURNUser:   flagHostTURNUser,
		TURNPass:   flagHostTURNPass,
		ForceRelay: flagHostRelay,
		Rejoin:     flagHostRejoin,
	})
	if err != nil {
		return session.NewError("load config", err)
	}

	rooms := roomapi.NewClient(cfg.APIBaseURL)
	info, err := rooms.Create(nickname, hostType)
	if err != nil {
		return session.NewError("create room", err)
	}

	ui.PrintSuccessf("Room created: %s", info.RoomID)
	ui.PrintInfof("Share this link: %s", cfg.GetRoomLink(info.RoomID))

	return runCall(cfg, rooms, nickname, info.RoomID)
}

func init() {
	rootCmd.AddCommand(hostCmd)

	hostCmd.Flags().StringVarP(&flagHostRole, "role", "r", "ASL", "Host communication role (ASL or STT)")
	hostCmd.Flags().StringVar(&flagHostDomain, "domain", "", "Custom domain")
	hostCmd.Flags().StringVarP(&flagHostSTUN, "stun", "s", "", "Custom STUN server")
	hostCmd.Flags().StringVarP(&flagHostTURN, "turn", "t", "", "Custom TURN server")
	hostCmd.Flags().StringVar(&flagHostTURNUser, "turn-user", "", "TURN username")
	hostCmd.Flags().StringVar(&flagHostTURNPass, "turn-pass", "", "TURN password")
	hostCmd.Flags().BoolVar(&flagHostRelay, "relay", false, "Force relay mode")
	hostCmd.Flags().BoolVar(&flagHostRejoin, "rejoin", false, "Re-join automatically after a transient disconnect")
}
