package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/NichHarris/intera-client/internal/session"
	"github.com/NichHarris/intera-client/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "intera",
	Short: "Two-party accessible video calls bridging sign language and speech",
	Long: `Intera connects two participants in a named room over a direct WebRTC
media connection. One participant signs (ASL), the other speaks (STT);
each side's transcript is translated and shared into the room's chat.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		if re, ok := session.AsRedirect(err); ok {
			ui.PrintErrorf("redirected: %s=%s", re.Reason, re.RoomID)
		} else {
			ui.PrintError(err.Error())
		}
		os.Exit(1)
	}
}
