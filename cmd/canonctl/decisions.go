package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect canonical decisions",
}

var decisionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show decided and undecided counts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt := openRuntime(ctx, loadConfig(), bootstrap.Options{SkipRedis: true})
		defer rt.Close()

		stats, err := rt.Engine.Decisions.Stats(ctx)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("  decided:   %d\n", stats.DecidedCount)
		fmt.Printf("  undecided: %d\n", stats.UndecidedCount)
		fmt.Printf("  rate:      %.1f%%\n", stats.DecidedRate*100)
	},
}

func init() {
	decisionsCmd.AddCommand(decisionsStatsCmd)
	rootCmd.AddCommand(decisionsCmd)
}
