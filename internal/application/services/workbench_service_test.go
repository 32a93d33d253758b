package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
	"github.com/zatekoja/coveragecompare/internal/domain/repositories"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

func openEventFor(t *testing.T, env *testEnv, insurer, proposal, name string) (*entities.UniverseRow, *entities.MappingEvent) {
	t.Helper()
	row := env.ingest(t, insurer, proposal, name)
	env.resolve(t, row)
	for _, e := range env.openEvents(t, insurer) {
		if e.UniverseRowID == row.ID {
			return row, e
		}
	}
	t.Fatalf("no open event for %q", name)
	return nil, nil
}

func TestWorkbench_DuplicateOpenSuppressed(t *testing.T) {
	env := newTestEnv(t)

	env.resolve(t, env.ingest(t, "KB", "P1", "알수없는담보"))
	env.resolve(t, env.ingest(t, "KB", "P2", "알수없는담보"))

	assert.Len(t, env.openEvents(t, "KB"), 1)
}

func TestWorkbench_ApproveWritesAliasAndReResolves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	row, event := openEventFor(t, env, "KB", "P1", "알수없는담보")
	before, err := env.repos.Aliases.CurrentVersion(ctx)
	require.NoError(t, err)

	approved, err := env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "CA_SURGERY", "", "checked policy", "reviewer", []string{"doc-P1#p1"}))
	require.NoError(t, err)

	assert.Equal(t, entities.EventStateApproved, approved.State)
	require.NotNil(t, approved.ResolvedCode)
	assert.Equal(t, "CA_SURGERY", *approved.ResolvedCode)
	assert.Equal(t, "reviewer", approved.ResolvedBy)

	after, err := env.repos.Aliases.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	result, err := env.Mapping.Get(ctx, row.ID)
	require.NoError(t, err)
	code, ok := result.Code()
	require.True(t, ok)
	assert.Equal(t, "CA_SURGERY", code.String())
	assert.Equal(t, entities.TierInsurerExact, result.Tier())

	published := env.bus.Published(providers.EventChannelAliasChanges)
	require.NotEmpty(t, published)
	last := published[len(published)-1]
	assert.Equal(t, entities.CanonEventAliasChanged, last.EventType)
	assert.Equal(t, "CA_SURGERY", last.CanonicalCode)
	assert.Equal(t, after, last.AliasVersion)

	audit, err := env.Workbench.ListAudit(ctx, entities.AuditFilter{EventID: event.ID})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, entities.AuditActionApprove, audit[0].Action)
	assert.Equal(t, "reviewer", audit[0].Actor)
	assert.Equal(t, []string{"doc-P1#p1"}, audit[0].EvidenceRefs)
	assert.JSONEq(t, `{"state":"OPEN"}`, string(audit[0].Before))
	assert.Contains(t, string(audit[0].After), `"state":"APPROVED"`)
}

func TestWorkbench_ApproveUnknownCodeWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, event := openEventFor(t, env, "KB", "P1", "알수없는담보")
	table, err := env.repos.Aliases.LoadTable(ctx)
	require.NoError(t, err)

	_, err = env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "FAKE_CODE", "", "", "reviewer", nil))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	after, err := env.repos.Aliases.LoadTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, table.Version, after.Version)
	assert.Len(t, after.Aliases, len(table.Aliases))

	detail, err := env.Workbench.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.EventStateOpen, detail.Event.State)

	audit, err := env.Workbench.ListAudit(ctx, entities.AuditFilter{EventID: event.ID})
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestWorkbench_ConflictingApprovalKeepsExistingAlias(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// Same normalized key, different raw titles: two separate events
	_, first := openEventFor(t, env, "KB", "P1", "알수없는담보")
	_, second := openEventFor(t, env, "KB", "P2", "알수없는 담보")

	_, err := env.Workbench.Execute(ctx, services.NewApproveCommand(first.ID, "CA_SURGERY", "", "", "alice", nil))
	require.NoError(t, err)

	_, err = env.Workbench.Execute(ctx, services.NewApproveCommand(second.ID, "CBV_DIAG", "", "", "bob", nil))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CBV_DIAG", appErr.Details["requested_code"])
	assert.Equal(t, "CA_SURGERY", appErr.Details["existing_code"])

	table, err := env.repos.Aliases.LoadTable(ctx)
	require.NoError(t, err)
	var found *entities.AliasRecord
	for _, a := range table.Aliases {
		if a.Insurer == "KB" {
			found = a
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "CA_SURGERY", found.CanonicalCode)

	// Approving with the code already stored succeeds without a new alias
	version := table.Version
	approved, err := env.Workbench.Execute(ctx, services.NewApproveCommand(second.ID, "CA_SURGERY", "", "", "bob", nil))
	require.NoError(t, err)
	assert.Equal(t, entities.EventStateApproved, approved.State)
	after, err := env.repos.Aliases.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, version, after)
}

func TestWorkbench_ApprovalConflictsAcrossAliasAndNameMap(t *testing.T) {
	tests := []struct {
		name      string
		existing  entities.ResolutionType
		requested entities.ResolutionType
	}{
		{name: "name map over alias", existing: entities.ResolutionAlias, requested: entities.ResolutionNameMap},
		{name: "alias over name map", existing: entities.ResolutionNameMap, requested: entities.ResolutionAlias},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			row, event := openEventFor(t, env, "KB", "P1", "알수없는담보")

			require.NoError(t, env.repos.Workbench.WithinTx(ctx, func(tx repositories.WorkbenchTx) error {
				if tt.existing == entities.ResolutionNameMap {
					return tx.InsertNameMap(ctx, &entities.NameMapRecord{
						Insurer: "KB", RawTitle: "알수없는담보", CanonicalCode: "CA_SURGERY", CreatedBy: "alice",
					})
				}
				return tx.InsertAlias(ctx, &entities.AliasRecord{
					Insurer: "KB", AliasText: "알수없는담보", NormalizedKey: row.NormalizedName,
					CanonicalCode: "CA_SURGERY", Source: "workbench", CreatedBy: "alice",
				})
			}))

			_, err := env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "CBV_DIAG", tt.requested, "", "bob", nil))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "CBV_DIAG", appErr.Details["requested_code"])
			assert.Equal(t, "CA_SURGERY", appErr.Details["existing_code"])

			table, err := env.repos.Aliases.LoadTable(ctx)
			require.NoError(t, err)
			for _, a := range table.Aliases {
				if a.Insurer == "KB" {
					assert.Equal(t, "CA_SURGERY", a.CanonicalCode)
				}
			}
			for _, m := range table.NameMaps {
				assert.Equal(t, "CA_SURGERY", m.CanonicalCode)
			}

			detail, err := env.Workbench.GetEvent(ctx, event.ID)
			require.NoError(t, err)
			assert.Equal(t, entities.EventStateOpen, detail.Event.State)

			// The same code through the other record kind is accepted
			approved, err := env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "CA_SURGERY", tt.requested, "", "bob", nil))
			require.NoError(t, err)
			assert.Equal(t, entities.EventStateApproved, approved.State)
		})
	}
}

func TestWorkbench_ReapproveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, event := openEventFor(t, env, "KB", "P1", "알수없는담보")

	_, err := env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "CA_SURGERY", "", "", "alice", nil))
	require.NoError(t, err)
	again, err := env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "CA_SURGERY", "", "", "alice", nil))
	require.NoError(t, err)
	assert.Equal(t, entities.EventStateApproved, again.State)

	audit, err := env.Workbench.ListAudit(ctx, entities.AuditFilter{EventID: event.ID})
	require.NoError(t, err)
	assert.Len(t, audit, 1)

	_, err = env.Workbench.Execute(ctx, services.NewRejectCommand(event.ID, "", "alice"))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))
}

func TestWorkbench_NameMapApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	row, event := openEventFor(t, env, "KB", "P1", "알수없는담보")

	_, err := env.Workbench.Execute(ctx, services.NewApproveCommand(event.ID, "CA_SURGERY", entities.ResolutionNameMap, "", "alice", nil))
	require.NoError(t, err)

	result, err := env.Mapping.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, result.IsMapped())
	require.NotEmpty(t, result.Evidence())
	assert.Equal(t, "name_map", result.Evidence()[0].Source)
}

func TestWorkbench_CommandsRequireActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, event := openEventFor(t, env, "KB", "P1", "알수없는담보")

	for _, cmd := range []services.WorkbenchCommand{
		services.NewApproveCommand(event.ID, "CA_SURGERY", "", "", "", nil),
		services.NewRejectCommand(event.ID, "", " "),
		services.NewSnoozeCommand(event.ID, "", "", nil),
	} {
		_, err := env.Workbench.Execute(ctx, cmd)
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), cmd.Action())
	}
}

func TestWorkbench_SnoozeSuppressesReopenUntilExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, event := openEventFor(t, env, "KB", "P1", "알수없는담보")

	snoozed, err := env.Workbench.Execute(ctx, services.NewSnoozeCommand(event.ID, "waiting for policy", "alice", nil))
	require.NoError(t, err)
	require.NotNil(t, snoozed.SnoozedUntil)
	assert.Equal(t, env.now.Add(7*24*time.Hour), *snoozed.SnoozedUntil)

	env.advance(24 * time.Hour)
	env.resolve(t, env.ingest(t, "KB", "P2", "알수없는담보"))
	assert.Empty(t, env.openEvents(t, "KB"))

	env.advance(7 * 24 * time.Hour)
	env.resolve(t, env.ingest(t, "KB", "P3", "알수없는담보"))
	assert.Len(t, env.openEvents(t, "KB"), 1)
}

func TestWorkbench_SnoozeInPastRejected(t *testing.T) {
	env := newTestEnv(t)
	_, event := openEventFor(t, env, "KB", "P1", "알수없는담보")
	past := env.now.Add(-time.Hour)

	_, err := env.Workbench.Execute(context.Background(), services.NewSnoozeCommand(event.ID, "", "alice", &past))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestWorkbench_SuggestionsAreValidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, event := openEventFor(t, env, "KB", "P1", "알수없는담보")

	report, err := env.Workbench.AddSuggestions(ctx, event.ID, []entities.EntityCandidate{
		{Span: "암수술", ProposedEntityType: "coverage", ProposedCoverageCode: strPtr("CA_SURGERY"), Confidence: 0.9},
		{Span: "가짜", ProposedEntityType: "coverage", ProposedCoverageCode: strPtr("FAKE_CODE"), Confidence: 0.99},
		{Span: "암수술", ProposedEntityType: "guess", ProposedCoverageCode: strPtr("CA_SURGERY"), Confidence: 0.99},
		{Span: "암수술", ProposedEntityType: "coverage", ProposedCoverageCode: strPtr("CA_SURGERY"), Confidence: 0.2},
		{Span: "암수술", ProposedEntityType: "coverage", Confidence: 0.95},
	})
	require.NoError(t, err)

	require.Len(t, report.Added, 1)
	assert.Equal(t, "CA_SURGERY", report.Added[0].CanonicalCode)
	assert.Len(t, report.Rejected, 4)

	detail, err := env.Workbench.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.EventStateOpen, detail.Event.State)
	assert.Len(t, detail.Suggestions, 1)
}

func TestWorkbench_UnknownEvent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Workbench.Execute(context.Background(), services.NewRejectCommand("missing", "", "alice"))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
}
