package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/apierr"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/repos"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

// hoursEpsilon bounds float noise when deciding whether two summed hour
// totals differ.
const hoursEpsilon = 1e-9

// ComparisonService computes line-level and aggregate diffs between two
// versions' forecast snapshots. Strictly read-only.
type ComparisonService interface {
	Compare(ctx context.Context, tx *gorm.DB, versionID1, versionID2 uuid.UUID) (*types.ForecastComparison, error)
}

type comparisonService struct {
	db             *gorm.DB
	log            *logger.Logger
	versionRepo    repos.ForecastVersionRepo
	forecastRepo   repos.ForecastRepo
	assignmentRepo repos.AssignmentRepo
}

func NewComparisonService(
	db *gorm.DB,
	baseLog *logger.Logger,
	versionRepo repos.ForecastVersionRepo,
	forecastRepo repos.ForecastRepo,
	assignmentRepo repos.AssignmentRepo,
) ComparisonService {
	serviceLog := baseLog.With("service", "ComparisonService")
	return &comparisonService{
		db:             db,
		log:            serviceLog,
		versionRepo:    versionRepo,
		forecastRepo:   forecastRepo,
		assignmentRepo: assignmentRepo,
	}
}

func (s *comparisonService) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// comparisonKey identifies one diff line. Week is folded away: weekly rows
// are summed into their month before comparing.
type comparisonKey struct {
	AssignmentID uuid.UUID
	Year         int
	Month        int
}

type comparisonSide struct {
	hours  float64
	status string
}

// collapse sums a version's forecasts by (assignment, year, month). The
// month-level row's status wins when weekly rows also exist.
func collapse(forecasts []*types.Forecast) map[comparisonKey]*comparisonSide {
	out := make(map[comparisonKey]*comparisonSide, len(forecasts))
	for _, f := range forecasts {
		key := comparisonKey{AssignmentID: f.AssignmentID, Year: f.Year, Month: f.Month}
		side, ok := out[key]
		if !ok {
			side = &comparisonSide{status: f.Status}
			out[key] = side
		}
		side.hours += f.ForecastedHours
		if f.Week == 0 {
			side.status = f.Status
		}
	}
	return out
}

func (s *comparisonService) Compare(ctx context.Context, tx *gorm.DB, versionID1, versionID2 uuid.UUID) (*types.ForecastComparison, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	db := s.resolve(tx)
	v1, err := s.versionRepo.GetByID(ctx, db, rd.TenantID, versionID1)
	if err != nil {
		return nil, fmt.Errorf("load version 1: %w", err)
	}
	if v1 == nil {
		return nil, apierr.NotFound("version_not_found", "forecast version %s not found", versionID1)
	}
	v2, err := s.versionRepo.GetByID(ctx, db, rd.TenantID, versionID2)
	if err != nil {
		return nil, fmt.Errorf("load version 2: %w", err)
	}
	if v2 == nil {
		return nil, apierr.NotFound("version_not_found", "forecast version %s not found", versionID2)
	}

	forecasts1, err := s.forecastRepo.ListByVersionID(ctx, db, rd.TenantID, versionID1)
	if err != nil {
		return nil, fmt.Errorf("load version 1 forecasts: %w", err)
	}
	forecasts2, err := s.forecastRepo.ListByVersionID(ctx, db, rd.TenantID, versionID2)
	if err != nil {
		return nil, fmt.Errorf("load version 2 forecasts: %w", err)
	}

	side1 := collapse(forecasts1)
	side2 := collapse(forecasts2)

	keys := make([]comparisonKey, 0, len(side1)+len(side2))
	seen := make(map[comparisonKey]bool, len(side1)+len(side2))
	for key := range side1 {
		seen[key] = true
		keys = append(keys, key)
	}
	for key := range side2 {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.AssignmentID != b.AssignmentID {
			return a.AssignmentID.String() < b.AssignmentID.String()
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	assignments, err := s.loadAssignments(ctx, db, rd.TenantID, keys)
	if err != nil {
		return nil, err
	}

	comparison := &types.ForecastComparison{
		Version1ID:   versionID1,
		Version2ID:   versionID2,
		Version1Name: v1.Name,
		Version2Name: v2.Name,
		Items:        make([]*types.ForecastComparisonItem, 0, len(keys)),
	}

	for _, key := range keys {
		s1, in1 := side1[key]
		s2, in2 := side2[key]

		item := &types.ForecastComparisonItem{
			AssignmentID: key.AssignmentID,
			Year:         key.Year,
			Month:        key.Month,
		}
		if a := assignments[key.AssignmentID]; a != nil {
			item.ProjectName = a.ProjectName
			item.PositionTitle = a.PositionTitle
		}

		var h1, h2 float64
		if in1 {
			h1 = s1.hours
			hours := s1.hours
			item.Version1Hours = &hours
			item.Version1Status = s1.status
			comparison.Version1TotalHours += s1.hours
		}
		if in2 {
			h2 = s2.hours
			hours := s2.hours
			item.Version2Hours = &hours
			item.Version2Status = s2.status
			comparison.Version2TotalHours += s2.hours
		}
		item.HoursDifference = h2 - h1

		switch {
		case !in1 && in2:
			item.IsNew = true
			comparison.NewForecastsCount++
		case in1 && !in2:
			item.IsRemoved = true
			comparison.RemovedForecastsCount++
		case math.Abs(h2-h1) > hoursEpsilon:
			item.IsChanged = true
			comparison.ChangedForecastsCount++
		default:
			comparison.UnchangedForecastsCount++
		}
		comparison.Items = append(comparison.Items, item)
	}

	comparison.HoursDifference = comparison.Version2TotalHours - comparison.Version1TotalHours
	if comparison.Version1TotalHours != 0 {
		comparison.PercentChange = comparison.HoursDifference / comparison.Version1TotalHours * 100
	}

	s.log.Debug("Versions compared",
		"version1_id", versionID1,
		"version2_id", versionID2,
		"items", len(comparison.Items),
		"changed", comparison.ChangedForecastsCount,
	)
	return comparison, nil
}

func (s *comparisonService) loadAssignments(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, keys []comparisonKey) (map[uuid.UUID]*types.Assignment, error) {
	ids := make([]uuid.UUID, 0, len(keys))
	seen := make(map[uuid.UUID]bool, len(keys))
	for _, key := range keys {
		if !seen[key.AssignmentID] {
			seen[key.AssignmentID] = true
			ids = append(ids, key.AssignmentID)
		}
	}
	assignments, err := s.assignmentRepo.GetByIDs(ctx, db, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	out := make(map[uuid.UUID]*types.Assignment, len(assignments))
	for _, a := range assignments {
		out[a.ID] = a
	}
	return out, nil
}
