package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/commands"
)

// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
var Version = "0.0.0-dev"

var rootCmd = &cobra.Command{
	Use:   "diadi-live [session-id]",
	Short: "Diadi Live - follow a facilitated conversation from the terminal",
	Long: `Diadi Live connects to a facilitation session and shows talk balance,
time remaining, goal drift and facilitator interventions as they happen.

Quick Start:
  diadi-live mock-server                 Serve a fake session on 127.0.0.1:7014
  diadi-live --session demo              Follow it in the dashboard

Commands:
  mock-server                 Run a local server with generated events
  session show|pause|resume|end|summary
                              One-off REST calls against a session
  config init|show            Write or inspect the config file

Config: ~/.diadi/config.yaml (DIADI_* environment variables override it)
Logs:   ~/.diadi/diadi-live.log`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    commands.RunTUI,
}

func init() {
	commands.BindFlags(rootCmd)

	rootCmd.AddCommand(commands.MockServerCmd)
	rootCmd.AddCommand(commands.SessionCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
}

func main() {
	commands.AppVersion = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
