package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
)

const unspecifiedGroup = "unspecified"

// TrackingInvalidator drops cached projections after writes.
type TrackingInvalidator interface {
	Invalidate(ctx context.Context, eventID uint)
}

// TrackingService builds read-only projections across submissions and evaluations.
type TrackingService interface {
	TrackingInvalidator
	Deliverables(ctx context.Context, caller Caller, eventID uint) (dto.DeliverablesResponse, error)
	Overview(ctx context.Context, caller Caller, eventID uint) (dto.TrackingOverviewResponse, error)
	Statistics(ctx context.Context, caller Caller, eventID uint) (dto.TrackingStatisticsResponse, error)
}

type trackingService struct {
	program     repository.ProgramRepository
	submissions repository.SubmissionRepository
	evaluations repository.EvaluationRepository
	access      *AccessPolicy
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewTrackingService constructs the tracking projections.
func NewTrackingService(program repository.ProgramRepository, submissions repository.SubmissionRepository, evaluations repository.EvaluationRepository, access *AccessPolicy, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) TrackingService {
	return &trackingService{
		program:     program,
		submissions: submissions,
		evaluations: evaluations,
		access:      access,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "tracking_service").Logger(),
		now:         time.Now,
	}
}

func deliverablesCacheKey(eventID uint) string {
	return fmt.Sprintf("tracking:deliverables:event:%d", eventID)
}

func (s *trackingService) Invalidate(ctx context.Context, eventID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, deliverablesCacheKey(eventID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("event_id", eventID).Msg("failed to invalidate deliverables cache")
	}
}

func (s *trackingService) Deliverables(ctx context.Context, caller Caller, eventID uint) (dto.DeliverablesResponse, error) {
	if err := s.guard(ctx, caller, eventID); err != nil {
		return dto.DeliverablesResponse{}, err
	}

	cacheKey := deliverablesCacheKey(eventID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.DeliverablesResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("event_id", eventID).Msg("deliverables cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read deliverables cache")
		}
	}

	teams, err := s.program.ListTeams(ctx, eventID)
	if err != nil {
		return dto.DeliverablesResponse{}, err
	}
	tasks, err := s.program.ListTasks(ctx, eventID)
	if err != nil {
		return dto.DeliverablesResponse{}, err
	}
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{EventID: &eventID})
	if err != nil {
		return dto.DeliverablesResponse{}, err
	}

	picks := pickCurrentSubmissions(submissions)

	currentIDs := make([]uint, 0, len(picks))
	for _, pick := range picks {
		if current := pick.current(); current != nil {
			currentIDs = append(currentIDs, current.ID)
		}
	}
	evaluations, err := s.evaluations.ListBySubmissionIDs(ctx, currentIDs)
	if err != nil {
		return dto.DeliverablesResponse{}, err
	}
	states := summarizeEvaluations(evaluations)

	response := dto.DeliverablesResponse{
		EventID:     eventID,
		Rows:        make([]dto.DeliverableRow, 0, len(teams)*len(tasks)),
		GeneratedAt: s.now().UTC(),
	}

	for _, team := range teams {
		for _, task := range tasks {
			row := dto.DeliverableRow{
				TeamID:           team.ID,
				TeamName:         team.Name,
				PhaseID:          task.PhaseID,
				TaskID:           task.ID,
				TaskTitle:        task.Title,
				IsRequired:       task.IsRequired,
				EvaluationStatus: dto.DeliverableEvaluationNone,
			}

			pick := picks[pairKey(team.ID, task.ID)]
			if pick != nil {
				current := pick.current()
				id := current.ID
				row.Delivered = pick.final != nil
				row.SubmissionID = &id
				row.SubmissionStatus = current.Status
				row.SubmittedAt = current.SubmittedAt

				if state, ok := states[current.ID]; ok {
					row.EvaluationStatus = state.status
					row.EvaluationID = state.evaluationID
					row.Score = state.score
				}
			}

			response.Summary.Pairs++
			if row.Delivered {
				response.Summary.Delivered++
			}
			switch row.EvaluationStatus {
			case dto.DeliverableEvaluationFinal:
				response.Summary.Evaluated++
			case dto.DeliverableEvaluationPending:
				response.Summary.Pending++
			}

			response.Rows = append(response.Rows, row)
		}
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store deliverables cache")
			}
		}
	}

	return response, nil
}

func (s *trackingService) Overview(ctx context.Context, caller Caller, eventID uint) (dto.TrackingOverviewResponse, error) {
	if err := s.guard(ctx, caller, eventID); err != nil {
		return dto.TrackingOverviewResponse{}, err
	}

	registrations, err := s.program.ListRegistrations(ctx, eventID)
	if err != nil {
		return dto.TrackingOverviewResponse{}, err
	}
	members, err := s.program.ListEventMembers(ctx, eventID)
	if err != nil {
		return dto.TrackingOverviewResponse{}, err
	}
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{EventID: &eventID})
	if err != nil {
		return dto.TrackingOverviewResponse{}, err
	}

	membership := indexMembership(members)
	perTeam := map[uint]int{}
	for _, submission := range submissions {
		perTeam[submission.TeamID]++
	}

	rows := make([]dto.ParticipantRow, 0, len(registrations))
	for _, registration := range registrations {
		row := dto.ParticipantRow{
			RegistrationID: registration.ID,
			UserID:         registration.UserID,
			FullName:       registration.FullName,
			Email:          registration.Email,
			Role:           registration.Role,
			Grade:          registration.Grade,
			CustomFields:   map[string]interface{}{},
		}
		for key, value := range registration.CustomFields {
			row.CustomFields[key] = value
		}
		if member, ok := membership[registration.UserID]; ok {
			teamID := member.Team.ID
			row.HasTeam = true
			row.TeamID = &teamID
			row.TeamName = member.Team.Name
			row.TeamRole = member.Member.Role
			row.TeamSubmissions = perTeam[teamID]
		}
		rows = append(rows, row)
	}

	return dto.TrackingOverviewResponse{EventID: eventID, Participants: rows}, nil
}

func (s *trackingService) Statistics(ctx context.Context, caller Caller, eventID uint) (dto.TrackingStatisticsResponse, error) {
	if err := s.guard(ctx, caller, eventID); err != nil {
		return dto.TrackingStatisticsResponse{}, err
	}

	registrations, err := s.program.ListRegistrations(ctx, eventID)
	if err != nil {
		return dto.TrackingStatisticsResponse{}, err
	}
	members, err := s.program.ListEventMembers(ctx, eventID)
	if err != nil {
		return dto.TrackingStatisticsResponse{}, err
	}
	teams, err := s.program.ListTeams(ctx, eventID)
	if err != nil {
		return dto.TrackingStatisticsResponse{}, err
	}
	counts, err := s.submissions.CountByStatus(ctx, eventID)
	if err != nil {
		return dto.TrackingStatisticsResponse{}, err
	}

	membership := indexMembership(members)
	byGrade := newGroupCounter()
	byField := map[string]*groupCounter{}

	response := dto.TrackingStatisticsResponse{
		EventID: eventID,
		Totals:  dto.TrackingTotals{Teams: len(teams)},
		Submissions: dto.SubmissionTotals{
			Draft: counts[models.SubmissionStatusDraft],
			Final: counts[models.SubmissionStatusFinal],
		},
	}

	for _, registration := range registrations {
		_, hasTeam := membership[registration.UserID]
		response.Totals.Registered++
		if hasTeam {
			response.Totals.WithTeam++
		} else {
			response.Totals.WithoutTeam++
		}

		byGrade.add(registration.Grade, hasTeam)
		for key, value := range registration.CustomFields {
			counter, ok := byField[key]
			if !ok {
				counter = newGroupCounter()
				byField[key] = counter
			}
			counter.add(fmt.Sprint(value), hasTeam)
		}
	}

	response.ByGrade = byGrade.sorted()
	response.ByCustomField = make(map[string][]dto.GroupCount, len(byField))
	for key, counter := range byField {
		response.ByCustomField[key] = counter.sorted()
	}

	return response, nil
}

func (s *trackingService) guard(ctx context.Context, caller Caller, eventID uint) error {
	if err := s.access.RequireReviewer(caller); err != nil {
		return err
	}
	event, err := s.program.GetEvent(ctx, eventID)
	if err != nil {
		return notFoundOr(err, ErrEventNotFound)
	}
	return s.access.EnsureTenant(caller, event.TenantID, ErrEventNotFound)
}

type submissionPick struct {
	final *models.Submission
	draft *models.Submission
}

// current prefers the final pick over the draft pick.
func (p *submissionPick) current() *models.Submission {
	if p.final != nil {
		return p.final
	}
	return p.draft
}

func pairKey(teamID, taskID uint) string {
	return fmt.Sprintf("%d:%d", teamID, taskID)
}

// pickCurrentSubmissions keys the most recent final and draft submission of every team and task.
func pickCurrentSubmissions(submissions []models.Submission) map[string]*submissionPick {
	picks := make(map[string]*submissionPick)
	for i := range submissions {
		submission := &submissions[i]
		key := pairKey(submission.TeamID, submission.TaskID)
		pick, ok := picks[key]
		if !ok {
			pick = &submissionPick{}
			picks[key] = pick
		}
		if submission.IsFinal() {
			if pick.final == nil || isMoreRecent(*submission, *pick.final) {
				pick.final = submission
			}
			continue
		}
		if pick.draft == nil || isMoreRecent(*submission, *pick.draft) {
			pick.draft = submission
		}
	}
	return picks
}

// isMoreRecent reports whether candidate should replace current. A strictly greater
// timestamp wins; a side with a timestamp beats a side without one.
func isMoreRecent(candidate, current models.Submission) bool {
	candidateAt, candidateOK := candidate.RecencyTimestamp()
	currentAt, currentOK := current.RecencyTimestamp()
	switch {
	case candidateOK && !currentOK:
		return true
	case !candidateOK:
		return false
	default:
		return candidateAt.After(currentAt)
	}
}

type evaluationState struct {
	status       string
	evaluationID *uint
	score        *float64
	finalAt      time.Time
}

// summarizeEvaluations reduces evaluations to the latest final one per submission, or pending.
func summarizeEvaluations(evaluations []models.Evaluation) map[uint]evaluationState {
	states := make(map[uint]evaluationState)
	for _, evaluation := range evaluations {
		if evaluation.SubmissionID == nil {
			continue
		}
		submissionID := *evaluation.SubmissionID
		state := states[submissionID]

		if evaluation.IsFinal() {
			if state.status != dto.DeliverableEvaluationFinal || evaluation.UpdatedAt.After(state.finalAt) {
				id := evaluation.ID
				state = evaluationState{
					status:       dto.DeliverableEvaluationFinal,
					evaluationID: &id,
					score:        evaluation.Score,
					finalAt:      evaluation.UpdatedAt,
				}
			}
		} else if state.status == "" {
			state.status = dto.DeliverableEvaluationPending
		}
		states[submissionID] = state
	}
	return states
}

func indexMembership(members []repository.MemberWithTeam) map[uint]repository.MemberWithTeam {
	index := make(map[uint]repository.MemberWithTeam, len(members))
	for _, member := range members {
		if _, exists := index[member.Member.UserID]; !exists {
			index[member.Member.UserID] = member
		}
	}
	return index
}

type groupCounter struct {
	groups map[string]*dto.GroupCount
}

func newGroupCounter() *groupCounter {
	return &groupCounter{groups: map[string]*dto.GroupCount{}}
}

func (g *groupCounter) add(key string, hasTeam bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = unspecifiedGroup
	}
	group, ok := g.groups[key]
	if !ok {
		group = &dto.GroupCount{Key: key}
		g.groups[key] = group
	}
	group.Total++
	if hasTeam {
		group.WithTeam++
	} else {
		group.WithoutTeam++
	}
}

func (g *groupCounter) sorted() []dto.GroupCount {
	out := make([]dto.GroupCount, 0, len(g.groups))
	for _, group := range g.groups {
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
