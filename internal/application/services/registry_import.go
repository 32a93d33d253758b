package services

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// AliasSeed is an alias shipped with a registry file. An empty insurer
// makes it global.
type AliasSeed struct {
	Insurer       string `yaml:"insurer"`
	Alias         string `yaml:"alias"`
	CanonicalCode string `yaml:"canonical_code"`
}

// RegistryBundle is the operator import file format
type RegistryBundle struct {
	Coverages    []entities.CoverageDefinition `yaml:"coverages"`
	DiseaseCodes []*entities.DiseaseCode       `yaml:"disease_codes"`
	Aliases      []AliasSeed                   `yaml:"aliases"`
}

// BundleReport summarizes a bundle import
type BundleReport struct {
	Coverages      ImportReport `json:"coverages"`
	DiseaseCodes   ImportReport `json:"disease_codes"`
	Aliases        ImportReport `json:"aliases"`
	SkippedAliases int          `json:"skipped_aliases"`
}

// LoadRegistryBundle reads a registry file
func LoadRegistryBundle(path string) (*RegistryBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}
	return ParseRegistryBundle(data)
}

// ParseRegistryBundle decodes a registry file
func ParseRegistryBundle(data []byte) (*RegistryBundle, error) {
	var bundle RegistryBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid registry file: %v", err))
	}
	return &bundle, nil
}

// RegistryImporter applies registry bundles: coverages first, then disease
// codes, then seed aliases that point at published codes
type RegistryImporter struct {
	registry   *RegistryService
	aliases    repositories.AliasRepository
	normalizer *utils.CoverageNormalizer
}

// NewRegistryImporter creates a new registry importer
func NewRegistryImporter(registry *RegistryService, aliases repositories.AliasRepository, normalizer *utils.CoverageNormalizer) *RegistryImporter {
	return &RegistryImporter{registry: registry, aliases: aliases, normalizer: normalizer}
}

// Import applies a bundle. Disease codes without a classification version
// take the supported one.
func (i *RegistryImporter) Import(ctx context.Context, bundle *RegistryBundle, actor string) (*BundleReport, error) {
	report := &BundleReport{}

	if len(bundle.Coverages) > 0 {
		r, err := i.registry.ImportCoverages(ctx, bundle.Coverages)
		if err != nil {
			return nil, err
		}
		report.Coverages = *r
	}

	if len(bundle.DiseaseCodes) > 0 {
		for _, c := range bundle.DiseaseCodes {
			if c != nil && c.ClassificationVersion == "" {
				c.ClassificationVersion = i.registry.SupportedVersion()
			}
		}
		r, err := i.registry.ImportDiseaseCodes(ctx, bundle.DiseaseCodes)
		if err != nil {
			return nil, err
		}
		report.DiseaseCodes = *r
	}

	var records []*entities.AliasRecord
	for _, seed := range bundle.Aliases {
		key := i.normalizer.Key(seed.Alias)
		if key == "" || seed.CanonicalCode == "" {
			report.SkippedAliases++
			continue
		}
		ok, err := i.registry.Exists(ctx, seed.CanonicalCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn().Str("alias", seed.Alias).Str("code", seed.CanonicalCode).
				Msg("Skipping seed alias for code outside the registry")
			report.SkippedAliases++
			continue
		}
		records = append(records, &entities.AliasRecord{
			Insurer:       seed.Insurer,
			AliasText:     seed.Alias,
			NormalizedKey: key,
			CanonicalCode: seed.CanonicalCode,
			Source:        "seed",
			CreatedBy:     actor,
		})
	}
	if len(records) > 0 {
		inserted, err := i.aliases.ImportAliases(ctx, records)
		if err != nil {
			return nil, err
		}
		report.Aliases = ImportReport{Inserted: inserted, Unchanged: len(records) - inserted}
	}

	log.Info().Int("coverages", report.Coverages.Inserted).Int("disease_codes", report.DiseaseCodes.Inserted).
		Int("aliases", report.Aliases.Inserted).Int("skipped_aliases", report.SkippedAliases).
		Msg("Registry import finished")
	return report, nil
}
