package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
)

func TestSubmissionCreateByCaptain(t *testing.T) {
	stack := newServiceStack(t, nil)
	ctx := context.Background()

	resp, err := stack.submissions.Create(ctx, stack.captain(), stack.event.ID, stack.brief.ID, dto.SubmissionCreateRequest{
		Type:    " link ",
		Content: "https://example.com/brief",
		Files: []dto.SubmissionFileInput{
			{FileName: "brief.pdf", URL: "https://files.example.com/brief.pdf", MimeType: "application/pdf", SizeBytes: 1024},
		},
	})
	require.NoError(t, err)
	require.Equal(t, stack.team.ID, resp.TeamID)
	require.Equal(t, stack.tenant.ID, resp.TenantID)
	require.Equal(t, captainUserID, resp.SubmittedBy)
	require.Equal(t, "link", resp.Type)
	require.Equal(t, models.SubmissionStatusDraft, resp.Status)
	require.Nil(t, resp.SubmittedAt)
	require.Len(t, resp.Files, 1)
	require.Equal(t, []uint{stack.event.ID}, stack.invalidator.events)
	require.Equal(t, int64(1), stack.countActivity(t, ActionSubmissionCreated))
}

func TestSubmissionCreateSubmitterRules(t *testing.T) {
	stack := newServiceStack(t, nil)
	ctx := context.Background()
	req := dto.SubmissionCreateRequest{Content: "work"}

	_, err := stack.submissions.Create(ctx, stack.member(), stack.event.ID, stack.brief.ID, req)
	require.ErrorIs(t, err, ErrCaptainRequired)

	outsider := Caller{UserID: 555, Role: RoleParticipant, TenantID: stack.tenant.ID}
	_, err = stack.submissions.Create(ctx, outsider, stack.event.ID, stack.brief.ID, req)
	require.ErrorIs(t, err, ErrNotTeamMember)

	_, err = stack.submissions.Create(ctx, stack.captain(), stack.event.ID, stack.brief.ID, dto.SubmissionCreateRequest{TeamID: uintPtr(stack.rival.ID)})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = stack.submissions.Create(ctx, stack.admin(), stack.event.ID, stack.brief.ID, req)
	require.ErrorIs(t, err, ErrTeamIDRequired)

	otherEvent := models.Event{TenantID: stack.tenant.ID, Name: "Other", Slug: "other"}
	require.NoError(t, stack.db.Create(&otherEvent).Error)
	strayTeam := models.Team{TenantID: stack.tenant.ID, EventID: otherEvent.ID, Name: "Strays"}
	require.NoError(t, stack.db.Create(&strayTeam).Error)
	_, err = stack.submissions.Create(ctx, stack.admin(), stack.event.ID, stack.brief.ID, dto.SubmissionCreateRequest{TeamID: uintPtr(strayTeam.ID)})
	require.ErrorIs(t, err, ErrTeamNotInEvent)

	_, err = stack.submissions.Create(ctx, stack.captain(), otherEvent.ID, stack.brief.ID, req)
	require.ErrorIs(t, err, ErrTaskNotFound)

	resp, err := stack.submissions.Create(ctx, stack.admin(), stack.event.ID, stack.brief.ID, dto.SubmissionCreateRequest{TeamID: uintPtr(stack.rival.ID), Status: models.SubmissionStatusFinal})
	require.NoError(t, err)
	require.Equal(t, stack.rival.ID, resp.TeamID)
	require.NotNil(t, resp.SubmittedAt)
}

func TestSubmissionListScopesParticipantsToTheirTeam(t *testing.T) {
	stack := newServiceStack(t, nil)
	ctx := context.Background()
	stack.submit(t, stack.brief, stack.team, models.SubmissionStatusDraft, nil)
	stack.submit(t, stack.brief, stack.rival, models.SubmissionStatusDraft, nil)

	all, err := stack.submissions.List(ctx, stack.mentor(), stack.event.ID, stack.brief.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	own, err := stack.submissions.List(ctx, stack.member(), stack.event.ID, stack.brief.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, stack.team.ID, own[0].TeamID)

	_, err = stack.submissions.List(ctx, Caller{UserID: 555, Role: RoleParticipant, TenantID: stack.tenant.ID}, stack.event.ID, stack.brief.ID)
	require.ErrorIs(t, err, ErrNotTeamMember)
}

func TestSubmissionGetHidesOtherTeams(t *testing.T) {
	stack := newServiceStack(t, nil)
	ctx := context.Background()
	submission := stack.submit(t, stack.brief, stack.team, models.SubmissionStatusDraft, nil)

	got, err := stack.submissions.Get(ctx, stack.member(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, submission.ID, got.ID)

	_, err = stack.submissions.Get(ctx, stack.rivalCaptain(), submission.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = stack.submissions.Get(ctx, stack.foreignMentor(), submission.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionUpdate(t *testing.T) {
	stack := newServiceStack(t, nil)
	ctx := context.Background()
	submission := stack.submit(t, stack.brief, stack.team, models.SubmissionStatusDraft, nil)

	_, err := stack.submissions.Update(ctx, stack.member(), submission.ID, dto.SubmissionUpdateRequest{Content: stringPtr("member edit")})
	require.ErrorIs(t, err, ErrCaptainRequired)

	_, err = stack.submissions.Update(ctx, stack.rivalCaptain(), submission.ID, dto.SubmissionUpdateRequest{Content: stringPtr("sabotage")})
	require.ErrorIs(t, err, ErrForbidden)

	files := []dto.SubmissionFileInput{
		{FileName: "v2.pdf", URL: "https://files.example.com/v2.pdf"},
		{FileName: "notes.txt", URL: "https://files.example.com/notes.txt"},
	}
	updated, err := stack.submissions.Update(ctx, stack.captain(), submission.ID, dto.SubmissionUpdateRequest{
		Content: stringPtr("second draft"),
		Files:   &files,
	})
	require.NoError(t, err)
	require.Equal(t, "second draft", updated.Content)
	require.Len(t, updated.Files, 2)
	require.Equal(t, models.SubmissionStatusDraft, updated.Status)

	finalized, err := stack.submissions.Update(ctx, stack.captain(), submission.ID, dto.SubmissionUpdateRequest{Status: stringPtr(models.SubmissionStatusFinal)})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusFinal, finalized.Status)
	require.NotNil(t, finalized.SubmittedAt)
	require.Len(t, finalized.Files, 2)

	_, err = stack.submissions.Update(ctx, stack.captain(), submission.ID, dto.SubmissionUpdateRequest{Content: stringPtr("too late")})
	require.ErrorIs(t, err, ErrSubmissionFinalized)
	_, err = stack.submissions.Update(ctx, stack.admin(), submission.ID, dto.SubmissionUpdateRequest{Content: stringPtr("too late")})
	require.ErrorIs(t, err, ErrSubmissionFinalized)

	require.Equal(t, int64(2), stack.countActivity(t, ActionSubmissionUpdated))
}
