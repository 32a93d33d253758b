package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the mapping event queue",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mapping events, newest first",
	Long: `List mapping events awaiting or past review.

Examples:
  # Open events
  canonctl events list

  # Snoozed events of one insurer
  canonctl events list --state SNOOZED --insurer SAMSUNG`,
	Run: func(cmd *cobra.Command, args []string) {
		state, _ := cmd.Flags().GetString("state")
		insurer, _ := cmd.Flags().GetString("insurer")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		rt := openRuntime(ctx, loadConfig(), bootstrap.Options{SkipRedis: true})
		defer rt.Close()

		events, total, err := rt.Engine.Workbench.ListEvents(ctx, entities.EventFilter{
			State:   entities.EventState(strings.ToUpper(state)),
			Insurer: insurer,
			Limit:   limit,
		})
		if err != nil {
			fail("%v", err)
		}
		if len(events) == 0 {
			ok("No events")
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%d of %d event(s):\n\n", len(events), total)
		for _, e := range events {
			fmt.Printf("%s  %s  %s\n", cyan(e.ID), e.State, e.Insurer)
			fmt.Printf("  Title: %s\n", e.RawCoverageTitle)
			fmt.Printf("  Detected: %s", e.DetectedStatus)
			if len(e.Candidates) > 0 {
				fmt.Printf(" %s", yellow(strings.Join(e.Candidates, ", ")))
			}
			fmt.Println()
			if e.ResolvedCode != nil {
				fmt.Printf("  Resolved: %s by %s\n", *e.ResolvedCode, e.ResolvedBy)
			}
			if e.SnoozedUntil != nil {
				fmt.Printf("  Snoozed until: %s\n", e.SnoozedUntil.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("  Created: %s\n\n", e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	eventsListCmd.Flags().String("state", string(entities.EventStateOpen), "Event state (OPEN, APPROVED, REJECTED, SNOOZED)")
	eventsListCmd.Flags().String("insurer", "", "Only events of this insurer")
	eventsListCmd.Flags().Int("limit", 50, "Maximum events to show")
	eventsCmd.AddCommand(eventsListCmd)
	rootCmd.AddCommand(eventsCmd)
}
