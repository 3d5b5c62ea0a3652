package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/carepath-academy/carepath/database/seeders"
	"github.com/carepath-academy/carepath/pkg/database"
	"github.com/carepath-academy/carepath/pkg/migration"
)

// withDB opens the database for the duration of fn.
func withDB(fn func() error) error {
	if err := database.Connect(); err != nil {
		return err
	}
	defer database.Close() //nolint:errcheck
	return fn()
}

// carepath migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			fmt.Println("Running migrations…")
			ran, err := migration.New(database.DB, os.Stdout).Run(cmd.Context())
			if err != nil {
				return err
			}
			if len(ran) > 0 {
				fmt.Printf("✅ Migrated %d\n", len(ran))
			}
			return nil
		})
	},
}

// carepath migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			fmt.Println("Rolling back last batch…")
			_, err := migration.New(database.DB, os.Stdout).Rollback(cmd.Context())
			return err
		})
	},
}

// carepath migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			rows, err := migration.New(database.DB, os.Stdout).Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "RAN\tBATCH\tMIGRATION")
			for _, r := range rows {
				ran, batch := "No", "-"
				if r.Ran {
					ran, batch = "Yes", fmt.Sprint(r.Batch)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", ran, batch, r.Name)
			}
			return w.Flush()
		})
	},
}

// carepath seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func() error {
			fmt.Println("Running seeders…")
			return seeders.RunAll(cmd.Context(), database.DB, os.Stdout)
		})
	},
}
