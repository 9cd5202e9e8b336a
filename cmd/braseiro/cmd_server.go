package main

import (
	"github.com/spf13/cobra"

	"github.com/rmoraes/braseiro/internal/server"
)

// braseiro serve — start the HTTP server.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start()
	},
}
