package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zatekoja/coveragecompare/internal/diseasecode"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// AttachScopeRequest is the input of AttachScope
type AttachScopeRequest struct {
	CanonicalCode  string              `json:"canonical_code"`
	Insurer        string              `json:"insurer"`
	ProposalID     string              `json:"proposal_id"`
	IncludeGroupID string              `json:"include_group_id"`
	ExcludeGroupID *string             `json:"exclude_group_id,omitempty"`
	Provenance     entities.Provenance `json:"provenance"`
}

// DiseaseScopeService manages disease code groups and coverage scopes
type DiseaseScopeService struct {
	repo     repositories.DiseaseRepository
	registry *RegistryService
}

// NewDiseaseScopeService creates a new disease scope service
func NewDiseaseScopeService(repo repositories.DiseaseRepository, registry *RegistryService) *DiseaseScopeService {
	return &DiseaseScopeService{repo: repo, registry: registry}
}

// CreateGroup validates and stores a disease code group
func (s *DiseaseScopeService) CreateGroup(ctx context.Context, group *entities.DiseaseCodeGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if err := group.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return s.repo.CreateGroup(ctx, group)
}

// GetGroup retrieves a group
func (s *DiseaseScopeService) GetGroup(ctx context.Context, id string) (*entities.DiseaseCodeGroup, error) {
	return s.repo.GetGroup(ctx, id)
}

// AttachScope binds include and optional exclude groups to a canonical code
// for one insurer proposal
func (s *DiseaseScopeService) AttachScope(ctx context.Context, req AttachScopeRequest) (*entities.CoverageDiseaseScope, error) {
	if req.CanonicalCode == "" || req.Insurer == "" || req.ProposalID == "" {
		return nil, apperrors.NewValidationError("canonical_code, insurer and proposal_id are required")
	}
	if req.IncludeGroupID == "" {
		return nil, apperrors.NewValidationError("include_group_id is required")
	}

	ok, err := s.registry.Exists(ctx, req.CanonicalCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("canonical code %s is not in the registry", req.CanonicalCode)).
			WithDetail("code", req.CanonicalCode)
	}

	if err := s.checkGroup(ctx, req.IncludeGroupID, req.Insurer, "include"); err != nil {
		return nil, err
	}
	if req.ExcludeGroupID != nil {
		if *req.ExcludeGroupID == req.IncludeGroupID {
			return nil, apperrors.NewValidationError("include and exclude groups must differ")
		}
		if err := s.checkGroup(ctx, *req.ExcludeGroupID, req.Insurer, "exclude"); err != nil {
			return nil, err
		}
	}

	scope := &entities.CoverageDiseaseScope{
		CanonicalCode:  req.CanonicalCode,
		Insurer:        req.Insurer,
		ProposalID:     req.ProposalID,
		IncludeGroupID: req.IncludeGroupID,
		ExcludeGroupID: req.ExcludeGroupID,
		Provenance:     req.Provenance,
	}
	if err := s.repo.SaveScope(ctx, scope); err != nil {
		return nil, err
	}
	return scope, nil
}

func (s *DiseaseScopeService) checkGroup(ctx context.Context, id, insurer, role string) error {
	group, err := s.repo.GetGroup(ctx, id)
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return apperrors.NewValidationError(fmt.Sprintf("%s group %s does not exist", role, id))
	}
	if err != nil {
		return err
	}
	if !group.AttachableBy(insurer) {
		return apperrors.NewValidationError(fmt.Sprintf("%s group %s belongs to %s", role, id, group.OwningInsurer))
	}
	return nil
}

// GetScope retrieves the scope of (canonical code, insurer, proposal)
func (s *DiseaseScopeService) GetScope(ctx context.Context, canonicalCode, insurer, proposalID string) (*entities.CoverageDiseaseScope, error) {
	return s.repo.GetScope(ctx, canonicalCode, insurer, proposalID)
}

// ResolveScope computes the effective disease codes of a scope against the
// current master
func (s *DiseaseScopeService) ResolveScope(ctx context.Context, scope *entities.CoverageDiseaseScope) (*entities.ResolvedScope, error) {
	master, err := s.registry.Master(ctx)
	if err != nil {
		return nil, err
	}

	include, err := s.repo.GetGroup(ctx, scope.IncludeGroupID)
	if err != nil {
		return nil, err
	}
	included := master.Expand(include.Members)

	var excluded map[string]struct{}
	if scope.ExcludeGroupID != nil {
		exclude, err := s.repo.GetGroup(ctx, *scope.ExcludeGroupID)
		if err != nil {
			return nil, err
		}
		excluded = master.Expand(exclude.Members)
	}

	return &entities.ResolvedScope{
		Scope:        scope,
		IncludeCount: len(included),
		ExcludeCount: len(excluded),
		Codes:        diseasecode.Difference(included, excluded),
	}, nil
}

// Resolve looks up and resolves the scope of (canonical code, insurer, proposal)
func (s *DiseaseScopeService) Resolve(ctx context.Context, canonicalCode, insurer, proposalID string) (*entities.ResolvedScope, error) {
	scope, err := s.repo.GetScope(ctx, canonicalCode, insurer, proposalID)
	if err != nil {
		return nil, err
	}
	return s.ResolveScope(ctx, scope)
}
