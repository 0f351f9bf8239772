package main

import (
	"fmt"
	"os"

	"SiteBeacon/internal/config"

	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "sitebeacon",
	Short: "Chat assistant and analytics beacon client",
	Long: `sitebeacon is the client for the site's chat assistant and its
analytics beacon backend. Chats are stored locally; telemetry is
delivered best-effort and never blocks.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.BeaconURL, "beacon-url", "http://localhost:8787/api/beacon", "Analytics table-store endpoint")
	flags.StringVar(&cfg.CompletionURL, "completion-url", "http://localhost:8787/api/chat", "AI completion endpoint")
	flags.StringVar(&cfg.StoragePath, "storage", "sitebeacon.db", "SQLite file holding local chat and session state")
	flags.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flags.DurationVar(&cfg.IdleTimeout, "idle-timeout", config.DefaultIdleTimeout, "Session idle timeout")
	flags.DurationVar(&cfg.CompletionTimeout, "completion-timeout", config.DefaultCompletionTimeout, "Completion request deadline")
	flags.DurationVar(&cfg.ReplyCacheTTL, "reply-cache-ttl", 0, "Cache completion replies for this long (0 disables)")

	rootCmd.AddCommand(chatCmd, chatsCmd, trackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
