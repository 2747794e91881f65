package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formwatch",
		Short: "Monitors government web pages and forms for content changes",
		Long: `formwatch polls government agency pages and form documents on
per-resource cadences, detects content changes by digest comparison, and
fans alerts out to email, Slack, Teams and Pub/Sub.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newNotifyTestCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
