package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/bootstrap"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/pkg/config"
)

// Seeds a development database with a small registry and two proposals.
//
//	RESET_DB=true go run ./scripts
//	go run ./cmd/canonctl evaluate scripts/golden_coverages.json
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("seed", cfg.Environment)

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Migrate: true, SkipRedis: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer rt.Close()

	if os.Getenv("RESET_DB") == "true" && rt.Postgres != nil {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := rt.Postgres.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				audit_log,
				event_suggestions,
				mapping_events,
				canonical_decisions,
				coverage_disease_scopes,
				disease_code_group_members,
				disease_code_groups,
				coverage_slots,
				coverage_mappings,
				universe_rows,
				coverage_name_maps,
				coverage_aliases,
				disease_codes,
				canonical_coverages
			CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	registryPath := os.Getenv("SEED_REGISTRY")
	if registryPath == "" {
		registryPath = "scripts/seed_registry.yaml"
	}
	bundle, err := services.LoadRegistryBundle(registryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read registry bundle")
	}
	report, err := rt.Engine.Importer.Import(ctx, bundle, "seed")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to import registry")
	}
	log.Info().Int("coverages", report.Coverages.Inserted).Int("aliases", report.Aliases.Inserted).Msg("Registry seeded")

	// Two insurers naming the same benefits differently, plus a meta row
	rows := []entities.UniverseRowCandidate{
		{Insurer: "SAMSUNG", ProposalID: "SEED-001", DocumentID: "samsung-proposal.pdf", Page: 3, RawCoverageName: "일반암진단비", SpanText: "일반암진단비 3,000만원"},
		{Insurer: "SAMSUNG", ProposalID: "SEED-001", DocumentID: "samsung-proposal.pdf", Page: 3, RawCoverageName: "뇌질환 진단비", SpanText: "뇌질환 진단비 1,000만원"},
		{Insurer: "SAMSUNG", ProposalID: "SEED-001", DocumentID: "samsung-proposal.pdf", Page: 4, RawCoverageName: "합계 보험료", SpanText: "합계 보험료 52,300원"},
		{Insurer: "HANWHA", ProposalID: "SEED-002", DocumentID: "hanwha-proposal.pdf", Page: 2, RawCoverageName: "암수술비", SpanText: "암수술비 500만원"},
		{Insurer: "HANWHA", ProposalID: "SEED-002", DocumentID: "hanwha-proposal.pdf", Page: 2, RawCoverageName: "특정순환계질환진단비", SpanText: "특정순환계질환진단비 2,000만원"},
	}
	results, err := rt.Engine.Universe.IngestBatch(ctx, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ingest rows")
	}
	for i, res := range results {
		log.Info().Str("coverage", rows[i].RawCoverageName).Str("status", string(res.Status)).Msg("Ingested row")
	}

	resolved, err := rt.Engine.ReResolver.ReResolveAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve rows")
	}
	log.Info().Int("mapped", resolved.Mapped).Int("unmapped", resolved.Unmapped).Int("ambiguous", resolved.Ambiguous).
		Msg("Seeding completed")
}
