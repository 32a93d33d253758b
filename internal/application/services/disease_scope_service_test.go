package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

func mustRange(t *testing.T, from, to string) entities.DiseaseCodeGroupMember {
	t.Helper()
	m, err := entities.NewRangeMember(from, to)
	require.NoError(t, err)
	return m
}

func mustCode(t *testing.T, code string) entities.DiseaseCodeGroupMember {
	t.Helper()
	m, err := entities.NewCodeMember(code)
	require.NoError(t, err)
	return m
}

func createScopeGroups(t *testing.T, env *testEnv) (include, exclude *entities.DiseaseCodeGroup) {
	t.Helper()
	ctx := context.Background()
	include = &entities.DiseaseCodeGroup{
		ID:      "malignant",
		Label:   "악성신생물",
		Kind:    entities.GroupKindMedical,
		Members: []entities.DiseaseCodeGroupMember{mustRange(t, "C00", "C97")},
	}
	exclude = &entities.DiseaseCodeGroup{
		ID:            "samsung-similar",
		Label:         "유사암",
		Kind:          entities.GroupKindInsurerConcept,
		OwningInsurer: "SAMSUNG",
		Members:       []entities.DiseaseCodeGroupMember{mustCode(t, "C44"), mustCode(t, "C73")},
	}
	require.NoError(t, env.Scopes.CreateGroup(ctx, include))
	require.NoError(t, env.Scopes.CreateGroup(ctx, exclude))
	return include, exclude
}

func TestDiseaseScope_IncludeMinusExclude(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	include, exclude := createScopeGroups(t, env)

	_, err := env.Scopes.AttachScope(ctx, services.AttachScopeRequest{
		CanonicalCode:  "CA_DIAG_GENERAL",
		Insurer:        "SAMSUNG",
		ProposalID:     "P1",
		IncludeGroupID: include.ID,
		ExcludeGroupID: strPtr(exclude.ID),
		Provenance:     entities.Provenance{SourceDocumentID: "policy-1", Page: 7, TextSpan: "유사암 제외"},
	})
	require.NoError(t, err)

	resolved, err := env.Scopes.Resolve(ctx, "CA_DIAG_GENERAL", "SAMSUNG", "P1")
	require.NoError(t, err)
	assert.Equal(t, []string{"C16", "C18", "C50"}, resolved.Codes)
	assert.Equal(t, 5, resolved.IncludeCount)
	assert.Equal(t, 2, resolved.ExcludeCount)
}

func TestDiseaseScope_InsurerConceptIsNotShared(t *testing.T) {
	env := newTestEnv(t)
	include, exclude := createScopeGroups(t, env)

	_, err := env.Scopes.AttachScope(context.Background(), services.AttachScopeRequest{
		CanonicalCode:  "CA_DIAG_GENERAL",
		Insurer:        "KB",
		ProposalID:     "P1",
		IncludeGroupID: include.ID,
		ExcludeGroupID: strPtr(exclude.ID),
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestDiseaseScope_AttachValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	include, _ := createScopeGroups(t, env)

	tests := []struct {
		name string
		req  services.AttachScopeRequest
	}{
		{"include equals exclude", services.AttachScopeRequest{CanonicalCode: "CA_DIAG_GENERAL", Insurer: "SAMSUNG", ProposalID: "P1", IncludeGroupID: include.ID, ExcludeGroupID: strPtr(include.ID)}},
		{"missing include", services.AttachScopeRequest{CanonicalCode: "CA_DIAG_GENERAL", Insurer: "SAMSUNG", ProposalID: "P1"}},
		{"unknown group", services.AttachScopeRequest{CanonicalCode: "CA_DIAG_GENERAL", Insurer: "SAMSUNG", ProposalID: "P1", IncludeGroupID: "nope"}},
		{"unknown code", services.AttachScopeRequest{CanonicalCode: "FAKE_CODE", Insurer: "SAMSUNG", ProposalID: "P1", IncludeGroupID: include.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Scopes.AttachScope(ctx, tt.req)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestDiseaseScope_InsurerConceptRequiresOwner(t *testing.T) {
	env := newTestEnv(t)

	err := env.Scopes.CreateGroup(context.Background(), &entities.DiseaseCodeGroup{
		Label:   "유사암",
		Kind:    entities.GroupKindInsurerConcept,
		Members: []entities.DiseaseCodeGroupMember{mustCode(t, "C73")},
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestDiseaseScope_ConfirmsSlotAfterAttach(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	include, exclude := createScopeGroups(t, env)
	row := env.ingest(t, "SAMSUNG", "P1", "암진단비(유사암제외)")

	env.resolve(t, row)
	slots, err := env.Mapping.GetSlots(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ConfidencePolicyRequired, slots.DiseaseScope.Confidence)

	scope, err := env.Scopes.AttachScope(ctx, services.AttachScopeRequest{
		CanonicalCode:  "CA_DIAG_GENERAL",
		Insurer:        "SAMSUNG",
		ProposalID:     "P1",
		IncludeGroupID: include.ID,
		ExcludeGroupID: strPtr(exclude.ID),
		Provenance:     entities.Provenance{SourceDocumentID: "policy-1", Page: 7, TextSpan: "유사암 제외"},
	})
	require.NoError(t, err)

	env.resolve(t, row)
	slots, err = env.Mapping.GetSlots(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ConfidenceProposalConfirmed, slots.DiseaseScope.Confidence)
	require.NotNil(t, slots.DiseaseScope.Value)
	assert.Equal(t, scope.ID, *slots.DiseaseScope.Value)
	assert.Equal(t, 7, slots.DiseaseScope.Evidence.Page)
}
