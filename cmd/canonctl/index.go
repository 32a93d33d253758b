package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zatekoja/coveragecompare/internal/bootstrap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain search indexes",
}

var indexCanonicalCmd = &cobra.Command{
	Use:   "canonical",
	Short: "Push every registry entry into the Typesense code picker index",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if !cfg.Typesense.Enabled {
			fail("Typesense is disabled; set TYPESENSE_ENABLED=true")
		}

		ctx := context.Background()
		rt := openRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true})
		defer rt.Close()

		n, err := rt.Engine.Search.IndexAll(ctx)
		if err != nil {
			fail("indexed %d before failing: %v", n, err)
		}
		ok("Indexed %d canonical coverage(s)", n)
	},
}

func init() {
	indexCmd.AddCommand(indexCanonicalCmd)
	rootCmd.AddCommand(indexCmd)
}
