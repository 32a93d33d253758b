package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete derived state of one proposal",
	Long: `Delete mapping results, slots and disease scopes derived from one proposal
so they can be recomputed with reresolve. Universe rows are kept unless
--rows is given. The registry and the audit log are never touched.

Examples:
  canonctl purge --insurer SAMSUNG --proposal P-2025-0001
  canonctl purge --insurer SAMSUNG --proposal P-2025-0001 --rows`,
	Run: func(cmd *cobra.Command, args []string) {
		insurer, _ := cmd.Flags().GetString("insurer")
		proposal, _ := cmd.Flags().GetString("proposal")
		includeRows, _ := cmd.Flags().GetBool("rows")
		if insurer == "" || proposal == "" {
			fail("--insurer and --proposal are required")
		}

		ctx := context.Background()
		rt := openRuntime(ctx, loadConfig(), bootstrap.Options{SkipRedis: true})
		defer rt.Close()

		report, err := rt.Engine.Universe.PurgeProposal(ctx, insurer, proposal, includeRows)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("  mappings: %d\n", report.Mappings)
		fmt.Printf("  scopes:   %d\n", report.Scopes)
		if includeRows {
			fmt.Printf("  rows:     %d\n", report.Rows)
		}
		ok("Purged %s/%s", insurer, proposal)
	},
}

func init() {
	purgeCmd.Flags().String("insurer", "", "Insurer of the proposal")
	purgeCmd.Flags().String("proposal", "", "Proposal id")
	purgeCmd.Flags().Bool("rows", false, "Also delete the universe rows")
	rootCmd.AddCommand(purgeCmd)
}
