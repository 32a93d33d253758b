package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	"github.com/zatekoja/coveragecompare/internal/recall"
	"github.com/zatekoja/coveragecompare/pkg/retry"
	"github.com/zatekoja/coveragecompare/pkg/utils"
)

// AliasIndexService serves the recall index for the current alias table
// version. Built indexes are kept in a process LRU and, when a cache is
// configured, as snapshots shared between instances.
type AliasIndexService struct {
	aliases    repositories.AliasRepository
	registry   *RegistryService
	normalizer *utils.CoverageNormalizer
	cache      providers.CacheProvider
	cacheTTL   time.Duration
	metrics    *observability.Metrics

	local *lru.Cache[string, *recall.Index]
	group singleflight.Group
}

// NewAliasIndexService creates a new alias index service. cache may be nil.
func NewAliasIndexService(
	aliases repositories.AliasRepository,
	registry *RegistryService,
	normalizer *utils.CoverageNormalizer,
	cache providers.CacheProvider,
	cacheTTL time.Duration,
	lruSize int,
) (*AliasIndexService, error) {
	if lruSize <= 0 {
		lruSize = 1
	}
	local, err := lru.New[string, *recall.Index](lruSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	return &AliasIndexService{
		aliases:    aliases,
		registry:   registry,
		normalizer: normalizer,
		cache:      cache,
		cacheTTL:   cacheTTL,
		local:      local,
	}, nil
}

// SetMetrics enables cache hit/miss metrics
func (s *AliasIndexService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Normalizer returns the normalizer every index is built with
func (s *AliasIndexService) Normalizer() *utils.CoverageNormalizer {
	return s.normalizer
}

// Current returns the index for the current alias table version
func (s *AliasIndexService) Current(ctx context.Context) (*recall.Index, error) {
	var version int64
	err := retry.DoIf(ctx, retry.StorageConfig(), retry.IsTransient, func() error {
		var err error
		version, err = s.aliases.CurrentVersion(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	key := recall.SnapshotKey(s.normalizer.Version(), version)
	if idx, ok := s.local.Get(key); ok {
		return idx, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if idx, ok := s.local.Get(key); ok {
			return idx, nil
		}
		idx, err := s.loadOrBuild(ctx, key)
		if err != nil {
			return nil, err
		}
		s.local.Add(key, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*recall.Index), nil
}

func (s *AliasIndexService) loadOrBuild(ctx context.Context, key string) (*recall.Index, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		switch {
		case err == nil && len(data) > 0:
			idx, err := recall.FromSnapshot(data, s.normalizer)
			if err == nil {
				observability.RecordCacheHit(ctx, s.metrics, "alias_index")
				return idx, nil
			}
			log.Warn().Err(err).Str("key", key).Msg("Discarding alias index snapshot")
		case err != nil && !errors.Is(err, providers.ErrCacheMiss):
			log.Warn().Err(err).Str("key", key).Msg("Failed to read alias index snapshot")
		}
		observability.RecordCacheMiss(ctx, s.metrics, "alias_index")
	}

	var table *entities.AliasTable
	err := retry.DoIf(ctx, retry.StorageConfig(), retry.IsTransient, func() error {
		var err error
		table, err = s.aliases.LoadTable(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	coverages, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := recall.Build(s.normalizer, table, coverages)
	if err != nil {
		return nil, err
	}
	if idx.Skipped() > 0 {
		log.Warn().Int("skipped", idx.Skipped()).Int64("alias_version", idx.AliasVersion()).
			Msg("Alias records reference codes outside the registry")
	}

	// The table may have moved on while it was read; cache under the version
	// the table was actually read at.
	buildKey := recall.SnapshotKey(s.normalizer.Version(), idx.AliasVersion())
	if s.cache != nil {
		if data, err := idx.Snapshot(); err == nil {
			if err := s.cache.Set(ctx, buildKey, data, int(s.cacheTTL.Seconds())); err != nil {
				log.Warn().Err(err).Str("key", buildKey).Msg("Failed to store alias index snapshot")
			}
		}
	}
	if buildKey != key {
		s.local.Add(buildKey, idx)
	}
	return idx, nil
}

// Recall expands text into candidate codes for an insurer. A miss is an
// empty result, not an error.
func (s *AliasIndexService) Recall(ctx context.Context, text, insurer string) (*recall.Result, error) {
	idx, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Recall(text, insurer), nil
}

// Invalidate drops every cached index. The next Current call rebuilds.
func (s *AliasIndexService) Invalidate(ctx context.Context) {
	s.local.Purge()
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("alias_index:%s:*", s.normalizer.Version())
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("Failed to delete alias index snapshots")
	}
}
