package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/apierr"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

func TestCreateVersion_AssignsSequentialNumbersPerScope(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()

	v1 := env.seedVersion(t, scope)
	v2 := env.seedVersion(t, scope)
	other := env.seedVersion(t, projectScope())

	if v1.VersionNumber != 1 || v2.VersionNumber != 2 {
		t.Fatalf("expected numbers 1,2 got %d,%d", v1.VersionNumber, v2.VersionNumber)
	}
	if other.VersionNumber != 1 {
		t.Fatalf("expected independent scope to restart at 1, got %d", other.VersionNumber)
	}
	if v1.VersionType != types.VersionTypeWhatIf {
		t.Fatalf("expected default version type what_if, got %q", v1.VersionType)
	}
}

func TestCreateVersion_RejectsInvalidScope(t *testing.T) {
	env := newTestEnv(t)
	projectID := uuid.New()
	userID := uuid.New()

	cases := []struct {
		name  string
		scope types.ScopeRef
	}{
		{"empty", types.ScopeRef{}},
		{"both", types.ScopeRef{ProjectID: &projectID, UserID: &userID}},
	}
	for _, tc := range cases {
		_, err := env.versions.Create(env.ctx, nil, CreateVersionInput{
			Name:       "bad scope",
			Scope:      tc.scope,
			StartYear:  2025,
			StartMonth: 1,
			EndYear:    2025,
			EndMonth:   12,
		})
		if !apierr.IsKind(err, apierr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCreateVersion_RejectsInvertedPeriodRange(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.versions.Create(env.ctx, nil, CreateVersionInput{
		Name:       "backwards",
		Scope:      projectScope(),
		StartYear:  2025,
		StartMonth: 6,
		EndYear:    2025,
		EndMonth:   1,
	})
	if !apierr.IsKind(err, apierr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPromote_KeepsSingleCurrentPerScope(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v1 := env.seedVersion(t, scope)
	v2 := env.seedVersion(t, scope)

	if _, err := env.versions.Promote(env.ctx, nil, v1.ID); err != nil {
		t.Fatalf("promote v1: %v", err)
	}
	if _, err := env.versions.Promote(env.ctx, nil, v2.ID); err != nil {
		t.Fatalf("promote v2: %v", err)
	}

	if n := env.countCurrent(t, scope); n != 1 {
		t.Fatalf("expected exactly 1 current version, got %d", n)
	}
	current, err := env.versions.GetCurrent(env.ctx, nil, scope)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current.ID != v2.ID {
		t.Fatalf("expected current %s, got %s", v2.ID, current.ID)
	}
	if current.VersionType != types.VersionTypeCurrent {
		t.Fatalf("expected version type current, got %q", current.VersionType)
	}
	if current.PromotedAt == nil {
		t.Fatalf("expected promoted_at to be set")
	}

	demoted, err := env.versions.GetByID(env.ctx, nil, v1.ID)
	if err != nil {
		t.Fatalf("reload v1: %v", err)
	}
	if demoted.IsCurrent {
		t.Fatalf("expected v1 to lose is_current")
	}
	if demoted.VersionType != types.VersionTypeWhatIf {
		t.Fatalf("expected demoted version type what_if, got %q", demoted.VersionType)
	}
}

func TestPromote_SecondCurrentWriteRejectedByIndex(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v1 := env.seedVersion(t, scope)
	v2 := env.seedVersion(t, scope)
	if _, err := env.versions.Promote(env.ctx, nil, v1.ID); err != nil {
		t.Fatalf("promote v1: %v", err)
	}

	// A promote that raced past the in-transaction demotion ends with exactly
	// this write: flagging its own target while the other current row still
	// stands. The partial unique index must reject it.
	err := env.db.Model(&types.ForecastVersion{}).
		Where("id = ?", v2.ID).
		Updates(map[string]interface{}{"is_current": true}).Error
	if err == nil {
		t.Fatalf("expected second current write to fail")
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key error, got %v", err)
	}

	if n := env.countCurrent(t, scope); n != 1 {
		t.Fatalf("expected exactly 1 current version, got %d", n)
	}
	current, err := env.versions.GetCurrent(env.ctx, nil, scope)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current.ID != v1.ID {
		t.Fatalf("expected v1 to remain current")
	}
}

func TestPromote_IndexAllowsOneCurrentPerIndependentScope(t *testing.T) {
	env := newTestEnv(t)
	projScope := projectScope()
	userID := uuid.New()
	userScope := types.ScopeRef{UserID: &userID}
	pv := env.seedVersion(t, projScope)
	uv := env.seedVersion(t, userScope)

	if _, err := env.versions.Promote(env.ctx, nil, pv.ID); err != nil {
		t.Fatalf("promote project version: %v", err)
	}
	if _, err := env.versions.Promote(env.ctx, nil, uv.ID); err != nil {
		t.Fatalf("promote user version: %v", err)
	}
	if n := env.countCurrent(t, projScope); n != 1 {
		t.Fatalf("expected 1 current project version, got %d", n)
	}
	if n := env.countCurrent(t, userScope); n != 1 {
		t.Fatalf("expected 1 current user version, got %d", n)
	}
}

func TestPromote_ConcurrentPromotesLeaveOneCurrent(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	candidates := []*types.ForecastVersion{
		env.seedVersion(t, scope),
		env.seedVersion(t, scope),
		env.seedVersion(t, scope),
	}

	var g errgroup.Group
	for _, v := range candidates {
		id := v.ID
		g.Go(func() error {
			_, err := env.versions.Promote(env.ctx, nil, id)
			// Losing a promote race surfaces as a conflict, not an invariant
			// break.
			if err != nil && !apierr.IsKind(err, apierr.KindConflict) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent promote: %v", err)
	}

	if n := env.countCurrent(t, scope); n != 1 {
		t.Fatalf("expected exactly 1 current version after concurrent promotes, got %d", n)
	}
}

func TestPromote_ArchivedVersionRejected(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v := env.seedVersion(t, scope)
	if _, err := env.versions.Archive(env.ctx, nil, v.ID, "superseded"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err := env.versions.Promote(env.ctx, nil, v.ID)
	if !apierr.IsKind(err, apierr.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestPromote_MissingVersionNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.versions.Promote(env.ctx, nil, uuid.New())
	if !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchive_CurrentVersionRejected(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v := env.seedVersion(t, scope)
	if _, err := env.versions.Promote(env.ctx, nil, v.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}

	_, err := env.versions.Archive(env.ctx, nil, v.ID, "nope")
	if !apierr.IsKind(err, apierr.KindState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestArchive_AlreadyArchivedRejected(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVersion(t, projectScope())

	archived, err := env.versions.Archive(env.ctx, nil, v.ID, "old")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.ArchivedAt == nil || archived.ArchiveReason != "old" {
		t.Fatalf("expected archived_at and reason to be recorded")
	}
	if archived.VersionType != types.VersionTypeHistorical {
		t.Fatalf("expected version type historical, got %q", archived.VersionType)
	}

	_, err = env.versions.Archive(env.ctx, nil, v.ID, "again")
	if !apierr.IsKind(err, apierr.KindState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestClone_CopiesForecastsAsFreshDrafts(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	source := env.seedVersion(t, scope)
	assignment := env.seedAssignment(t)
	f := env.seedForecast(t, source.ID, assignment.ID, 2025, 3, 160)

	// Push the source record past draft and override it, so the clone has
	// real workflow state to shed.
	if _, err := env.workflow.Submit(env.ctx, nil, f.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.workflow.Approve(env.ctx, nil, f.ID, "ok"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.workflow.Override(env.ctx, nil, f.ID, 150, "pm correction"); err != nil {
		t.Fatalf("override: %v", err)
	}

	clone, err := env.versions.Clone(env.ctx, nil, source.ID, CloneVersionInput{CopyForecasts: true})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Name != source.Name+" (copy)" {
		t.Fatalf("expected default clone name, got %q", clone.Name)
	}
	if clone.BasedOnVersionID == nil || *clone.BasedOnVersionID != source.ID {
		t.Fatalf("expected lineage to point at source")
	}
	if clone.VersionNumber != source.VersionNumber+1 {
		t.Fatalf("expected version number %d, got %d", source.VersionNumber+1, clone.VersionNumber)
	}

	copies, err := env.forecasts.List(env.ctx, nil, listByVersion(clone.ID))
	if err != nil {
		t.Fatalf("list clone forecasts: %v", err)
	}
	if len(copies) != 1 {
		t.Fatalf("expected 1 copied forecast, got %d", len(copies))
	}
	dup := copies[0]
	if dup.ID == f.ID {
		t.Fatalf("expected copy to get a fresh id")
	}
	if dup.ForecastedHours != 150 {
		t.Fatalf("expected copied hours 150, got %v", dup.ForecastedHours)
	}
	if dup.Status != types.ForecastStatusDraft {
		t.Fatalf("expected copy status draft, got %q", dup.Status)
	}
	if dup.IsOverride || dup.OverrideReason != "" || dup.OriginalForecastedHours != nil {
		t.Fatalf("expected override state to be cleared on copy")
	}
	if dup.SubmittedAt != nil || dup.ApprovedAt != nil || dup.ApprovalNotes != "" {
		t.Fatalf("expected approval state to be cleared on copy")
	}

	history, err := env.forecasts.GetHistory(env.ctx, nil, dup.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ChangeType != types.ChangeTypeCreate {
		t.Fatalf("expected one create history row for the copy, got %d", len(history))
	}
}

func TestDelete_GuardsCurrentAndLineage(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v := env.seedVersion(t, scope)
	if _, err := env.versions.Promote(env.ctx, nil, v.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := env.versions.Delete(env.ctx, nil, v.ID); !apierr.IsKind(err, apierr.KindState) {
		t.Fatalf("expected state error deleting current version, got %v", err)
	}

	base := env.seedVersion(t, scope)
	if _, err := env.versions.Clone(env.ctx, nil, base.ID, CloneVersionInput{}); err != nil {
		t.Fatalf("clone: %v", err)
	}
	if err := env.versions.Delete(env.ctx, nil, base.ID); !apierr.IsKind(err, apierr.KindState) {
		t.Fatalf("expected state error deleting version with dependents, got %v", err)
	}
}

func TestDelete_RemovesVersionForecasts(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v := env.seedVersion(t, scope)
	assignment := env.seedAssignment(t)
	env.seedForecast(t, v.ID, assignment.ID, 2025, 2, 40)

	if err := env.versions.Delete(env.ctx, nil, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.versions.GetByID(env.ctx, nil, v.ID); !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("expected version gone, got %v", err)
	}

	var n int64
	if err := env.db.Model(&types.Forecast{}).Where("version_id = ?", v.ID).Count(&n).Error; err != nil {
		t.Fatalf("count forecasts: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected version forecasts removed, %d remain", n)
	}
}
