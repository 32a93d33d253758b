package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/bootstrap"
)

var reresolveCmd = &cobra.Command{
	Use:   "reresolve",
	Short: "Re-run the resolver over stored universe rows",
	Long: `Re-resolve universe rows after aliases or the registry changed. The run is
idempotent and can be interrupted and restarted.

Examples:
  # Re-resolve every row
  canonctl reresolve

  # Re-resolve one proposal
  canonctl reresolve --insurer SAMSUNG --proposal P-2025-0001

  # Use more workers with a lower database rate
  canonctl reresolve --workers 8 --rate 50`,
	Run: func(cmd *cobra.Command, args []string) {
		insurer, _ := cmd.Flags().GetString("insurer")
		proposal, _ := cmd.Flags().GetString("proposal")
		workers, _ := cmd.Flags().GetInt("workers")
		ratePerSecond, _ := cmd.Flags().GetFloat64("rate")

		if (insurer == "") != (proposal == "") {
			fail("--insurer and --proposal must be given together")
		}

		cfg := loadConfig()
		if workers > 0 {
			cfg.Canon.ReResolveWorkers = workers
		}
		if ratePerSecond > 0 {
			cfg.Canon.ReResolveRatePerSecond = ratePerSecond
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt := openRuntime(ctx, cfg, bootstrap.Options{})
		defer rt.Close()

		start := time.Now()
		var (
			report *services.ReResolveReport
			err    error
		)
		if insurer != "" {
			report, err = rt.Engine.ReResolver.ReResolveProposal(ctx, insurer, proposal)
		} else {
			report, err = rt.Engine.ReResolver.ReResolveAll(ctx)
		}
		if report != nil {
			fmt.Printf("  resolved:  %d (changed %d)\n", report.Resolved, report.Changed)
			fmt.Printf("  mapped:    %d\n", report.Mapped)
			fmt.Printf("  ambiguous: %d\n", report.Ambiguous)
			fmt.Printf("  unmapped:  %d\n", report.Unmapped)
			fmt.Printf("  failed:    %d\n", report.Failed)
		}
		if err != nil {
			fail("re-resolve stopped: %v", err)
		}
		ok("Re-resolve finished in %s", time.Since(start).Round(time.Millisecond))
	},
}

func init() {
	reresolveCmd.Flags().String("insurer", "", "Insurer of the proposal to re-resolve")
	reresolveCmd.Flags().String("proposal", "", "Proposal id to re-resolve")
	reresolveCmd.Flags().Int("workers", 0, "Parallel workers (default from RERESOLVE_WORKERS)")
	reresolveCmd.Flags().Float64("rate", 0, "Rows per second limit (default from RERESOLVE_RATE_PER_SECOND)")
	rootCmd.AddCommand(reresolveCmd)
}
