package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "canonctl",
	Short: "Operate the coverage canonicalization engine",
	Long: `canonctl runs operator tasks against the engine's store: schema
migrations, registry imports, batch re-resolution and queue inspection.

Configuration comes from the same environment variables as the API server.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fail("invalid configuration: %v", err)
	}
	observability.InitLogger("canonctl", cfg.Environment)
	return cfg
}

// openRuntime builds the engine. The engine is not started, so commands
// publish to Redis but never subscribe.
func openRuntime(ctx context.Context, cfg *config.Config, opts bootstrap.Options) *bootstrap.Runtime {
	rt, err := bootstrap.Build(ctx, cfg, opts)
	if err != nil {
		fail("%v", err)
	}
	return rt
}

func fail(format string, args ...interface{}) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

func ok(format string, args ...interface{}) {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}
