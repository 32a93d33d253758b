package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/bootstrap"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the canonical coverage registry",
}

var registryImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import coverages, disease codes and seed aliases",
	Long: `Import a registry bundle. Entries already present are left unchanged.
Seed aliases whose code is not in the registry are skipped.

Examples:
  canonctl registry import registry/kcd8.yaml --actor ops@example.com

  # Validate a bundle without touching the store
  canonctl registry import registry/kcd8.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		actor, _ := cmd.Flags().GetString("actor")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		bundle, err := services.LoadRegistryBundle(args[0])
		if err != nil {
			fail("%v", err)
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s: %d coverages, %d disease codes, %d aliases\n",
			cyan(args[0]), len(bundle.Coverages), len(bundle.DiseaseCodes), len(bundle.Aliases))
		if dryRun {
			ok("Bundle parsed")
			return
		}

		ctx := context.Background()
		rt := openRuntime(ctx, loadConfig(), bootstrap.Options{})
		defer rt.Close()

		report, err := rt.Engine.Importer.Import(ctx, bundle, actor)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("  coverages:     %d inserted, %d unchanged\n", report.Coverages.Inserted, report.Coverages.Unchanged)
		fmt.Printf("  disease codes: %d inserted, %d unchanged\n", report.DiseaseCodes.Inserted, report.DiseaseCodes.Unchanged)
		fmt.Printf("  aliases:       %d inserted, %d unchanged\n", report.Aliases.Inserted, report.Aliases.Unchanged)
		if report.SkippedAliases > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("  %s %d alias(es) skipped: code not in registry\n", yellow("⚠"), report.SkippedAliases)
		}
		ok("Registry import complete")
	},
}

func init() {
	registryImportCmd.Flags().String("actor", "canonctl", "Actor recorded on imported entries")
	registryImportCmd.Flags().Bool("dry-run", false, "Parse the bundle only")
	registryCmd.AddCommand(registryImportCmd)
	rootCmd.AddCommand(registryCmd)
}
