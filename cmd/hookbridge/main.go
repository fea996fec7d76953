package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hookbridge",
	Short: "Webhook ingestion and issue API façade",
	Long: `hookbridge receives signed webhook deliveries from an issue tracker,
verifies and normalizes them into a durable event store, and exposes a
small REST API for reading stored events and proxying issue operations
to the upstream tracker.`,
	Version: version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hookbridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hookbridge %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
