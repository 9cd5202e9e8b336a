package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "braseiro",
	Short: "Braseiro — offline-capable POS data layer",
	Long:  "Braseiro persists orders, cart, products and settings for a retail-food point of sale, with structured and flat storage backends.",
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)

	// Data
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupExportCmd)
	rootCmd.AddCommand(backupRestoreCmd)
	rootCmd.AddCommand(backupRecoverCmd)
	rootCmd.AddCommand(statsCmd)
}
