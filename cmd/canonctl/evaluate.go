package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
	"github.com/zatekoja/coveragecompare/internal/evaluation"
)

var (
	evalMaxWrong  int
	evalMinMapped float64
	evalMinRecall float64
	evalJSON      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <golden.json>",
	Short: "Score the resolver against a labeled golden set",
	Long: `evaluate classifies every golden title against the current registry and
aliases without writing mappings, then checks the run against guardrails.
The command exits non-zero when a guardrail is violated.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cases, err := evaluation.LoadGoldenCases(args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := evaluation.ValidateGoldenCases(cases); err != nil {
			fail("%v", err)
		}

		ctx := context.Background()
		rt := openRuntime(ctx, loadConfig(), bootstrap.Options{SkipRedis: true})
		defer rt.Close()

		summary, err := evaluation.NewRunner(rt.Engine.Mapping, rt.Engine.Index).Run(ctx, cases)
		if err != nil {
			fail("%v", err)
		}

		if evalJSON {
			out, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Println(string(out))
		} else {
			printSummary(summary)
		}

		violations := evaluation.NewGuardrails(evaluation.GuardrailConfig{
			MaxWrongCodes: evalMaxWrong,
			MinMappedRate: evalMinMapped,
			MinRecallAt10: evalMinRecall,
		}).Check(summary)
		if len(violations) > 0 {
			red := color.New(color.FgRed).SprintFunc()
			for _, v := range violations {
				fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), v)
			}
			os.Exit(1)
		}
		ok("all guardrails passed")
	},
}

func printSummary(s *evaluation.Summary) {
	fmt.Printf("  cases:      %d\n", s.TotalCases)
	fmt.Printf("  precision:  %.3f\n", s.Precision)
	fmt.Printf("  mapped:     %.3f\n", s.MappedRate)
	fmt.Printf("  recall@10:  %.3f\n", s.AvgRecallAt10)
	fmt.Printf("  mrr@10:     %.3f\n", s.AvgMRRAt10)
	fmt.Printf("  latency:    %s\n", s.AvgLatency)
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, f := range s.Failures {
		fmt.Printf("  %s %s: expected %q, got %q (%s)\n", yellow("!"), f.CaseID, f.ExpectedCode, f.MappedCode, f.Outcome)
	}
}

func init() {
	evaluateCmd.Flags().IntVar(&evalMaxWrong, "max-wrong", 0, "Wrong-code mappings tolerated")
	evaluateCmd.Flags().Float64Var(&evalMinMapped, "min-mapped", 0, "Minimum mapped rate over labeled cases")
	evaluateCmd.Flags().Float64Var(&evalMinRecall, "min-recall", 0, "Minimum average recall@10")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(evaluateCmd)
}
