package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/logger"

	// Registers migrations via init().
	_ "github.com/carepath-academy/carepath/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var closeLogger = func() {}

var rootCmd = &cobra.Command{
	Use:           "carepath",
	Short:         "CarePath Academy API",
	Long:          "CarePath serves the course catalogue, cart, checkout and enrollment API and runs its background workers.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		closeLogger = logger.Setup()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogger()
	},
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(queueRetryCmd)
	rootCmd.AddCommand(scheduleRunCmd)
}
