package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagEnvFile     string
	flagNoBroadcast bool
)

var rootCmd = &cobra.Command{
	Use:   "tmdbbot",
	Short: "Telegram bot that posts trending TMDB titles and answers searches",
	Long: `tmdbbot posts newly trending movies and series to a Telegram channel,
sends a weekly digest, and lets users search titles and posters.

Run "serve" behind a Telegram webhook or "poll" for long polling.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "optional dotenv file; variables already set win")
	rootCmd.PersistentFlags().BoolVar(&flagNoBroadcast, "no-broadcast", false, "answer users only, never post to the channel on a schedule")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tmdbbot %s (commit: %s)\n", version, commit)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c string) {
	version = v
	commit = c
}
