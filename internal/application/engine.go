// Package application wires the canonicalization services over one store.
package application

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/pkg/config"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// Dependencies are the outer resources the engine runs on. Cache, Bus,
// Search and Metrics may be nil.
type Dependencies struct {
	Store      repositories.Store
	Normalizer *utils.CoverageNormalizer
	Cache      providers.CacheProvider
	Bus        providers.EventBus
	Search     providers.CanonicalSearchProvider
	Metrics    *observability.Metrics
}

// Engine holds every service of the canonicalization engine
type Engine struct {
	Registry   *services.RegistryService
	Importer   *services.RegistryImporter
	Index      *services.AliasIndexService
	Universe   *services.UniverseService
	Mapping    *services.MappingService
	Scopes     *services.DiseaseScopeService
	Decisions  *services.DecisionService
	Validator  *services.CandidateValidator
	Workbench  *services.WorkbenchService
	ReResolver *services.ReResolutionService
	Compare    *services.CompareService
	Search     *services.CanonicalSearchService
	Refresh    *services.IndexRefreshService
}

// NewEngine builds and connects the services
func NewEngine(cfg config.CanonConfig, deps Dependencies) (*Engine, error) {
	store := deps.Store

	registry := services.NewRegistryService(store.Registry, cfg.ClassificationVersion)
	index, err := services.NewAliasIndexService(store.Aliases, registry, deps.Normalizer, deps.Cache, cfg.AliasIndexCacheTTL, cfg.AliasIndexLRUSize)
	if err != nil {
		return nil, err
	}
	index.SetMetrics(deps.Metrics)

	filter, err := services.NewMetaRowFilter(deps.Normalizer)
	if err != nil {
		return nil, err
	}

	universe := services.NewUniverseService(store, deps.Normalizer, filter, deps.Metrics)
	mapping := services.NewMappingService(store, registry, index, services.NewSlotExtractor(store.Disease), cfg.FuzzyThreshold)
	mapping.SetMetrics(deps.Metrics)

	validator := services.NewCandidateValidator(registry, cfg.AllowedEntityTypes, cfg.CandidateConfidenceThreshold)
	workbench := services.NewWorkbenchService(store.Workbench, deps.Normalizer, validator, cfg.SnoozeDuration)
	workbench.SetMetrics(deps.Metrics)
	mapping.SetEventOpener(workbench)

	reresolver := services.NewReResolutionService(store.Universe, mapping, cfg.ReResolveWorkers, cfg.ReResolveRatePerSecond)
	workbench.SetReResolver(reresolver)

	scopes := services.NewDiseaseScopeService(store.Disease, registry)
	decisions := services.NewDecisionService(store.Decisions, registry, index, deps.Metrics)

	e := &Engine{
		Registry:   registry,
		Importer:   services.NewRegistryImporter(registry, store.Aliases, deps.Normalizer),
		Index:      index,
		Universe:   universe,
		Mapping:    mapping,
		Scopes:     scopes,
		Decisions:  decisions,
		Validator:  validator,
		Workbench:  workbench,
		ReResolver: reresolver,
		Compare:    services.NewCompareService(universe, mapping, registry, scopes, decisions),
		Search:     services.NewCanonicalSearchService(registry, deps.Search, deps.Normalizer),
	}

	if deps.Bus != nil {
		mapping.SetEventBus(deps.Bus)
		workbench.SetEventBus(deps.Bus)
		e.Refresh = services.NewIndexRefreshService(index, deps.Bus)
	}

	registry.OnChange(func(ctx context.Context) {
		index.Invalidate(ctx)
		if err := services.PublishRegistryChange(ctx, deps.Bus); err != nil {
			log.Warn().Err(err).Msg("Failed to publish registry change")
		}
	})
	return e, nil
}

// Start runs background listeners
func (e *Engine) Start() error {
	if e.Refresh == nil {
		return nil
	}
	return e.Refresh.Start()
}

// Stop stops background listeners
func (e *Engine) Stop() {
	if e.Refresh != nil {
		e.Refresh.Stop()
	}
}
