package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/infrastructure/clients/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the embedded SQL migrations that have not run yet.

Examples:
  # Apply pending migrations
  canonctl migrate

  # List embedded migrations without applying them
  canonctl migrate --list`,
	Run: func(cmd *cobra.Command, args []string) {
		list, _ := cmd.Flags().GetBool("list")

		if list {
			names, err := postgres.Migrations()
			if err != nil {
				fail("%v", err)
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return
		}

		cfg := loadConfig()
		client, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			fail("%v", err)
		}
		defer client.Close()

		applied, err := postgres.Migrate(context.Background(), client)
		if err != nil {
			fail("%v", err)
		}
		if len(applied) == 0 {
			ok("Schema is up to date")
			return
		}
		for _, name := range applied {
			fmt.Printf("  applied %s\n", name)
		}
		ok("Applied %d migration(s)", len(applied))
	},
}

func init() {
	migrateCmd.Flags().Bool("list", false, "List embedded migrations")
	rootCmd.AddCommand(migrateCmd)
}
