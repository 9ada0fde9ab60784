package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "remindbot",
	Short: "Telegram reminder bot",
	Long: `remindbot lets Telegram users schedule one-time and recurring reminders
(daily, weekdays, weekends) through an inline-keyboard dialog.

Configuration is read from REMINDBOT_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
