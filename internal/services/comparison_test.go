package services

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/apierr"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

func TestCompare_CloneIsZeroDiff(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	source := env.seedVersion(t, scope)
	a1 := env.seedAssignment(t)
	a2 := env.seedAssignment(t)
	env.seedForecast(t, source.ID, a1.ID, 2025, 1, 160)
	env.seedForecast(t, source.ID, a2.ID, 2025, 2, 80)

	clone, err := env.versions.Clone(env.ctx, nil, source.ID, CloneVersionInput{CopyForecasts: true})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	diff, err := env.comparisons.Compare(env.ctx, nil, source.ID, clone.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if diff.HoursDifference != 0 || diff.PercentChange != 0 {
		t.Fatalf("expected zero diff, got hours=%v percent=%v", diff.HoursDifference, diff.PercentChange)
	}
	if diff.NewForecastsCount != 0 || diff.RemovedForecastsCount != 0 || diff.ChangedForecastsCount != 0 {
		t.Fatalf("expected no flagged items: %+v", diff)
	}
	if diff.UnchangedForecastsCount != 2 || len(diff.Items) != 2 {
		t.Fatalf("expected 2 unchanged items, got %d/%d", diff.UnchangedForecastsCount, len(diff.Items))
	}
}

func TestCompare_FlagsNewRemovedChanged(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	v1 := env.seedVersion(t, scope)
	v2 := env.seedVersion(t, scope)
	changed := env.seedAssignment(t)
	removed := env.seedAssignment(t)
	added := env.seedAssignment(t)

	env.seedForecast(t, v1.ID, changed.ID, 2025, 1, 100)
	env.seedForecast(t, v1.ID, removed.ID, 2025, 1, 50)
	env.seedForecast(t, v2.ID, changed.ID, 2025, 1, 60)
	env.seedForecast(t, v2.ID, added.ID, 2025, 1, 30)

	diff, err := env.comparisons.Compare(env.ctx, nil, v1.ID, v2.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if diff.Version1TotalHours != 150 || diff.Version2TotalHours != 90 {
		t.Fatalf("unexpected totals: %v vs %v", diff.Version1TotalHours, diff.Version2TotalHours)
	}
	if diff.HoursDifference != -60 {
		t.Fatalf("expected hours difference -60, got %v", diff.HoursDifference)
	}
	if math.Abs(diff.PercentChange-(-40)) > 1e-9 {
		t.Fatalf("expected percent change -40, got %v", diff.PercentChange)
	}
	if diff.NewForecastsCount != 1 || diff.RemovedForecastsCount != 1 || diff.ChangedForecastsCount != 1 {
		t.Fatalf("unexpected counts: %+v", diff)
	}

	byAssignment := map[uuid.UUID]*types.ForecastComparisonItem{}
	for _, item := range diff.Items {
		byAssignment[item.AssignmentID] = item
	}
	ci := byAssignment[changed.ID]
	if ci == nil || !ci.IsChanged || ci.HoursDifference != -40 {
		t.Fatalf("expected changed item with -40, got %+v", ci)
	}
	ri := byAssignment[removed.ID]
	if ri == nil || !ri.IsRemoved || ri.Version2Hours != nil {
		t.Fatalf("expected removed item with nil v2 hours, got %+v", ri)
	}
	if ri.Version1Hours == nil || *ri.Version1Hours != 50 {
		t.Fatalf("expected removed item v1 hours 50")
	}
	ni := byAssignment[added.ID]
	if ni == nil || !ni.IsNew || ni.Version1Hours != nil {
		t.Fatalf("expected new item with nil v1 hours, got %+v", ni)
	}
	if ni.ProjectName == "" || ni.PositionTitle == "" {
		t.Fatalf("expected assignment display metadata on items")
	}
}

func TestCompare_ZeroBaselineHasZeroPercentChange(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	empty := env.seedVersion(t, scope)
	populated := env.seedVersion(t, scope)
	assignment := env.seedAssignment(t)
	env.seedForecast(t, populated.ID, assignment.ID, 2025, 1, 40)

	diff, err := env.comparisons.Compare(env.ctx, nil, empty.ID, populated.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if diff.PercentChange != 0 {
		t.Fatalf("expected percent change 0 on zero baseline, got %v", diff.PercentChange)
	}
	if diff.HoursDifference != 40 || diff.NewForecastsCount != 1 {
		t.Fatalf("unexpected diff: %+v", diff)
	}
}

func TestCompare_CollapsesWeeklyRowsIntoMonths(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	weekly := env.seedVersion(t, scope)
	monthly := env.seedVersion(t, scope)
	assignment := env.seedAssignment(t)

	for week, hours := range map[int]float64{1: 10, 2: 20} {
		if _, err := env.forecasts.Create(env.ctx, nil, CreateForecastInput{
			AssignmentID:    assignment.ID,
			VersionID:       weekly.ID,
			Year:            2025,
			Month:           1,
			Week:            week,
			ForecastedHours: hours,
		}); err != nil {
			t.Fatalf("create weekly row: %v", err)
		}
	}
	env.seedForecast(t, monthly.ID, assignment.ID, 2025, 1, 30)

	diff, err := env.comparisons.Compare(env.ctx, nil, weekly.ID, monthly.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(diff.Items) != 1 {
		t.Fatalf("expected weekly rows folded into one item, got %d", len(diff.Items))
	}
	if diff.ChangedForecastsCount != 0 || diff.UnchangedForecastsCount != 1 {
		t.Fatalf("expected summed weeks to match the month row: %+v", diff)
	}
}

func TestCompare_MissingVersionNotFound(t *testing.T) {
	env := newTestEnv(t)
	v := env.seedVersion(t, projectScope())
	if _, err := env.comparisons.Compare(env.ctx, nil, v.ID, uuid.New()); !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// TestVersioningLifecycle drives the whole flow: promote a baseline, forecast
// against it, walk the approval workflow, branch a what-if, adjust it and diff
// the two versions.
func TestVersioningLifecycle(t *testing.T) {
	env := newTestEnv(t)
	scope := projectScope()
	assignment := env.seedAssignment(t)

	baseline := env.seedVersion(t, scope)
	if _, err := env.versions.Promote(env.ctx, nil, baseline.ID); err != nil {
		t.Fatalf("promote baseline: %v", err)
	}

	f := env.seedForecast(t, baseline.ID, assignment.ID, 2025, 1, 160)
	if _, err := env.workflow.Submit(env.ctx, nil, f.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.workflow.Approve(env.ctx, nil, f.ID, "baseline signoff"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	whatIf, err := env.versions.Clone(env.ctx, nil, baseline.ID, CloneVersionInput{
		Name:          "Reduced scope scenario",
		CopyForecasts: true,
	})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	copies, err := env.forecasts.List(env.ctx, nil, listByVersion(whatIf.ID))
	if err != nil {
		t.Fatalf("list clone forecasts: %v", err)
	}
	if len(copies) != 1 || copies[0].Status != types.ForecastStatusDraft {
		t.Fatalf("expected one draft copy, got %d", len(copies))
	}
	hours := 120.0
	if _, err := env.forecasts.Update(env.ctx, nil, copies[0].ID, UpdateForecastInput{ForecastedHours: &hours}); err != nil {
		t.Fatalf("update copy: %v", err)
	}

	diff, err := env.comparisons.Compare(env.ctx, nil, baseline.ID, whatIf.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if diff.ChangedForecastsCount != 1 || len(diff.Items) != 1 {
		t.Fatalf("expected one changed line, got %+v", diff)
	}
	if !diff.Items[0].IsChanged || diff.Items[0].HoursDifference != -40 {
		t.Fatalf("expected -40 hour change, got %+v", diff.Items[0])
	}
	if diff.Items[0].Version1Status != types.ForecastStatusApproved || diff.Items[0].Version2Status != types.ForecastStatusDraft {
		t.Fatalf("expected per-side statuses, got %q/%q", diff.Items[0].Version1Status, diff.Items[0].Version2Status)
	}

	// The baseline stays current throughout; the what-if never became current.
	current, err := env.versions.GetCurrent(env.ctx, nil, scope)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current.ID != baseline.ID {
		t.Fatalf("expected baseline to remain current")
	}
}
