package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestRubricRepositoryReturnsCriteriaInExplicitOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRubricRepository(db)
	ctx := context.Background()

	phaseID := uint(3)
	rubric := models.Rubric{
		TenantID: 1,
		EventID:  2,
		PhaseID:  &phaseID,
		Scope:    models.RubricScopePhase,
		Name:     "Pitch",
		ScaleMin: 0,
		ScaleMax: 10,
		Criteria: []models.RubricCriterion{
			{TenantID: 1, Title: "Third", OrderIndex: 3},
			{TenantID: 1, Title: "First", OrderIndex: 1, MaxScore: floatPtr(5)},
			{TenantID: 1, Title: "Second", OrderIndex: 2},
		},
	}
	require.NoError(t, repo.Create(ctx, &rubric))

	stored, err := repo.GetByID(ctx, rubric.ID)
	require.NoError(t, err)
	require.Len(t, stored.Criteria, 3)
	require.Equal(t, "First", stored.Criteria[0].Title)
	require.Equal(t, "Second", stored.Criteria[1].Title)
	require.Equal(t, "Third", stored.Criteria[2].Title)
	require.Equal(t, 5.0, stored.Criteria[0].Ceiling(stored.ScaleMax))
	require.Equal(t, 10.0, stored.Criteria[1].Ceiling(stored.ScaleMax))
}

func TestRubricRepositoryReplaceCriteriaLeavesExactlyN(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRubricRepository(db)
	ctx := context.Background()

	rubric := models.Rubric{
		TenantID: 1,
		EventID:  2,
		Scope:    models.RubricScopeProject,
		Name:     "Final",
		ScaleMax: 10,
		Criteria: []models.RubricCriterion{
			{TenantID: 1, Title: "A"}, {TenantID: 1, Title: "B"}, {TenantID: 1, Title: "C"},
		},
	}
	require.NoError(t, repo.Create(ctx, &rubric))

	for _, n := range []int{1, 4, 2} {
		criteria := make([]models.RubricCriterion, 0, n)
		for i := 0; i < n; i++ {
			criteria = append(criteria, models.RubricCriterion{TenantID: 1, Title: fmt.Sprintf("C%d", i), OrderIndex: i})
		}
		require.NoError(t, repo.ReplaceCriteria(ctx, rubric.ID, criteria))

		var count int64
		require.NoError(t, db.Model(&models.RubricCriterion{}).Where("rubric_id = ?", rubric.ID).Count(&count).Error)
		require.Equal(t, int64(n), count)
	}
}

func TestRubricRepositoryLatestForPhaseIgnoresProjectScope(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRubricRepository(db)
	ctx := context.Background()

	phaseID := uint(9)
	older := models.Rubric{TenantID: 1, EventID: 1, PhaseID: &phaseID, Scope: models.RubricScopePhase, Name: "old", ScaleMax: 10}
	newer := models.Rubric{TenantID: 1, EventID: 1, PhaseID: &phaseID, Scope: models.RubricScopePhase, Name: "new", ScaleMax: 10}
	project := models.Rubric{TenantID: 1, EventID: 1, Scope: models.RubricScopeProject, Name: "project", ScaleMax: 10}
	require.NoError(t, repo.Create(ctx, &older))
	require.NoError(t, repo.Create(ctx, &newer))
	require.NoError(t, repo.Create(ctx, &project))

	latest, err := repo.LatestForPhase(ctx, phaseID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "new", latest.Name)

	none, err := repo.LatestForPhase(ctx, 404)
	require.NoError(t, err)
	require.Nil(t, none)

	projectRubric, err := repo.LatestForProject(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "project", projectRubric.Name)
}

func TestSubmissionRepositoryCurrentFinalPicksLatestSubmittedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	early := base
	late := base.Add(2 * time.Hour)

	submissions := []models.Submission{
		{TenantID: 1, EventID: 1, TaskID: 5, TeamID: 7, Status: models.SubmissionStatusFinal, SubmittedAt: &late, Content: "late"},
		{TenantID: 1, EventID: 1, TaskID: 5, TeamID: 7, Status: models.SubmissionStatusFinal, SubmittedAt: &early, Content: "early"},
		{TenantID: 1, EventID: 1, TaskID: 5, TeamID: 7, Status: models.SubmissionStatusDraft, Content: "draft"},
		{TenantID: 1, EventID: 1, TaskID: 5, TeamID: 8, Status: models.SubmissionStatusFinal, SubmittedAt: &late, Content: "other team"},
	}
	for i := range submissions {
		require.NoError(t, repo.Create(ctx, &submissions[i]))
	}

	current, err := repo.CurrentFinal(ctx, 7, 5)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, "late", current.Content)

	missing, err := repo.CurrentFinal(ctx, 7, 6)
	require.NoError(t, err)
	require.Nil(t, missing)

	counts, err := repo.CountByStatus(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, counts[models.SubmissionStatusFinal])
	require.Equal(t, 1, counts[models.SubmissionStatusDraft])
}

func TestSubmissionRepositoryListFiltersByIDsAndTasks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	a := models.Submission{TenantID: 1, EventID: 1, TaskID: 1, TeamID: 1, Status: models.SubmissionStatusDraft}
	b := models.Submission{TenantID: 1, EventID: 1, TaskID: 2, TeamID: 1, Status: models.SubmissionStatusDraft,
		Files: []models.SubmissionFile{{FileName: "deck.pdf", URL: "https://files.example.com/deck.pdf"}}}
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))

	teamID := uint(1)
	items, err := repo.List(ctx, SubmissionFilter{TeamID: &teamID, IDs: []uint{a.ID, b.ID}, TaskIDs: []uint{2}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, b.ID, items[0].ID)
	require.Len(t, items[0].Files, 1)

	empty, err := repo.List(ctx, SubmissionFilter{IDs: []uint{}})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestProgramRepositoryUpsertsAreIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgramRepository(db)
	ctx := context.Background()

	tenant := models.Tenant{Name: "Acme", Slug: "acme"}
	require.NoError(t, repo.UpsertTenant(ctx, &tenant))
	again := models.Tenant{Name: "Acme Labs", Slug: "acme"}
	require.NoError(t, repo.UpsertTenant(ctx, &again))
	require.Equal(t, tenant.ID, again.ID)
	require.Equal(t, "Acme Labs", again.Name)

	event := models.Event{TenantID: tenant.ID, Name: "Hack", Slug: "hack"}
	require.NoError(t, repo.UpsertEvent(ctx, &event))

	team := models.Team{TenantID: tenant.ID, EventID: event.ID, Name: "Owls", CaptainUserID: 10}
	require.NoError(t, repo.UpsertTeam(ctx, &team))
	for i := 0; i < 2; i++ {
		member := models.TeamMember{TeamID: team.ID, UserID: 10, Role: models.TeamRoleCaptain}
		require.NoError(t, repo.UpsertTeamMember(ctx, &member))
	}

	members, err := repo.ListTeamMembers(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	membership, err := repo.FindMembership(ctx, event.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, membership)
	require.Equal(t, team.ID, membership.Team.ID)
	require.True(t, membership.Member.IsCaptain())

	none, err := repo.FindMembership(ctx, event.ID, 99)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestEvaluationRepositoryUpdateIfStatusRejectsStaleStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	submissionID := uint(4)
	evaluation := models.Evaluation{
		TenantID:     1,
		SubmissionID: &submissionID,
		Comment:      "first pass",
		Status:       models.EvaluationStatusDraft,
		Source:       models.EvaluationSourceManual,
		Score:        floatPtr(6),
	}
	require.NoError(t, repo.Create(ctx, &evaluation))

	finalized := evaluation
	finalized.Status = models.EvaluationStatusFinal
	finalized.Comment = "signed off"
	finalized.UpdatedAt = time.Now().UTC()
	applied, err := repo.UpdateIfStatus(ctx, &finalized, models.EvaluationStatusDraft)
	require.NoError(t, err)
	require.True(t, applied)

	// A second writer that also read the draft row must lose.
	late := evaluation
	late.Status = models.EvaluationStatusFinal
	late.Comment = "late edit"
	late.Score = nil
	late.UpdatedAt = time.Now().UTC()
	applied, err = repo.UpdateIfStatus(ctx, &late, models.EvaluationStatusDraft)
	require.NoError(t, err)
	require.False(t, applied)

	stored, err := repo.GetByID(ctx, evaluation.ID)
	require.NoError(t, err)
	require.Equal(t, models.EvaluationStatusFinal, stored.Status)
	require.Equal(t, "signed off", stored.Comment)
	require.Equal(t, 6.0, *stored.Score)
}
