package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/repos"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/requestdata"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

var testDBSeq atomic.Int64

// newTestDB opens a uniquely named in-memory sqlite database. A single
// connection keeps the database alive for the test and serializes writers,
// which sqlite requires anyway.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&types.Assignment{},
		&types.ForecastVersion{},
		&types.Forecast{},
		&types.ForecastHistoryItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db       *gorm.DB
	ctx      context.Context
	tenantID uuid.UUID
	userID   uuid.UUID

	versions    VersionService
	forecasts   ForecastService
	workflow    WorkflowService
	comparisons ComparisonService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}

	versionRepo := repos.NewForecastVersionRepo(db, log)
	forecastRepo := repos.NewForecastRepo(db, log)
	historyRepo := repos.NewForecastHistoryRepo(db, log)
	assignmentRepo := repos.NewAssignmentRepo(db, log)

	env := &testEnv{
		db:       db,
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
	env.ctx = requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		TenantID: env.tenantID,
		UserID:   env.userID,
	})
	env.versions = NewVersionService(db, log, versionRepo, forecastRepo, historyRepo)
	env.forecasts = NewForecastService(db, log, forecastRepo, versionRepo, assignmentRepo, historyRepo)
	env.workflow = NewWorkflowService(db, log, forecastRepo, versionRepo, historyRepo)
	env.comparisons = NewComparisonService(db, log, versionRepo, forecastRepo, assignmentRepo)
	return env
}

// seedAssignment inserts an assignment row directly; assignments are owned by
// the staffing collaborator and never written through this module's services.
func (e *testEnv) seedAssignment(t *testing.T) *types.Assignment {
	t.Helper()
	projectID := uuid.New()
	a := &types.Assignment{
		ID:            uuid.New(),
		TenantID:      e.tenantID,
		ProjectID:     &projectID,
		ProjectName:   "Radar Modernization",
		PositionTitle: "Systems Engineer",
		IsActive:      true,
	}
	if err := e.db.Create(a).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return a
}

// newTestEnvCtx returns a request context for a different tenant against the
// same database.
func newTestEnvCtx(e *testEnv, tenantID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		TenantID: tenantID,
		UserID:   uuid.New(),
	})
}

func listByVersion(versionID uuid.UUID) repos.ForecastFilter {
	return repos.ForecastFilter{VersionID: &versionID}
}

// projectScope returns a fresh project-bound scope.
func projectScope() types.ScopeRef {
	id := uuid.New()
	return types.ScopeRef{ProjectID: &id}
}

func (e *testEnv) seedVersion(t *testing.T, scope types.ScopeRef) *types.ForecastVersion {
	t.Helper()
	v, err := e.versions.Create(e.ctx, nil, CreateVersionInput{
		Name:       "FY25 Baseline",
		Scope:      scope,
		StartYear:  2025,
		StartMonth: 1,
		EndYear:    2025,
		EndMonth:   12,
	})
	if err != nil {
		t.Fatalf("seed version: %v", err)
	}
	return v
}

func (e *testEnv) seedForecast(t *testing.T, versionID, assignmentID uuid.UUID, year, month int, hours float64) *types.Forecast {
	t.Helper()
	f, err := e.forecasts.Create(e.ctx, nil, CreateForecastInput{
		AssignmentID:    assignmentID,
		VersionID:       versionID,
		Year:            year,
		Month:           month,
		ForecastedHours: hours,
	})
	if err != nil {
		t.Fatalf("seed forecast: %v", err)
	}
	return f
}

func (e *testEnv) countCurrent(t *testing.T, scope types.ScopeRef) int64 {
	t.Helper()
	q := e.db.Model(&types.ForecastVersion{}).
		Where("tenant_id = ? AND is_current = ?", e.tenantID, true)
	if scope.ProjectID != nil {
		q = q.Where("project_id = ?", *scope.ProjectID)
	} else {
		q = q.Where("scope_user_id = ?", *scope.UserID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count current versions: %v", err)
	}
	return n
}
