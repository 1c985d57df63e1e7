package service

import "github.com/noah-isme/gema-program-api/internal/apperror"

var (
	ErrEventNotFound           = apperror.NotFound("eventNotFound", "event not found")
	ErrPhaseNotFound           = apperror.NotFound("phaseNotFound", "phase not found")
	ErrTaskNotFound            = apperror.NotFound("taskNotFound", "task not found")
	ErrTeamNotFound            = apperror.NotFound("teamNotFound", "team not found")
	ErrProjectNotFound         = apperror.NotFound("projectNotFound", "project not found")
	ErrSubmissionNotFound      = apperror.NotFound("submissionNotFound", "submission not found")
	ErrRubricNotFound          = apperror.NotFound("rubricNotFound", "rubric not found")
	ErrEvaluationNotFound      = apperror.NotFound("evaluationNotFound", "evaluation not found")
	ErrFinalEvaluationNotFound = apperror.NotFound("finalEvaluationNotFound", "final evaluation not found")
	ErrNotificationNotFound    = apperror.NotFound("notificationNotFound", "notification not found")

	ErrReviewerRequired = apperror.Forbidden("reviewerRequired", "reviewer role required")
	ErrManagerRequired  = apperror.Forbidden("managerRequired", "organizer or admin role required")
	ErrNotTeamMember    = apperror.Forbidden("notTeamMember", "you are not a member of a team in this event")
	ErrCaptainRequired  = apperror.Forbidden("captainRequired", "only the team captain can submit for the team")
	ErrForbidden        = apperror.Forbidden("forbidden", "you do not have access to this resource")

	ErrTeamIDRequired           = apperror.BadRequest("teamIdRequired", "team_id is required")
	ErrTeamNotInEvent           = apperror.BadRequest("teamNotInEvent", "team does not belong to this event")
	ErrCommentRequired          = apperror.BadRequest("commentRequired", "comment is required")
	ErrInvalidScore             = apperror.BadRequest("invalidScore", "score must be a number")
	ErrScoreOutOfRange          = apperror.BadRequest("scoreOutOfRange", "score is out of range")
	ErrSubmissionsMismatch      = apperror.BadRequest("submissionsNotBelongToTeamOrPhase", "submissions do not belong to the team or phase")
	ErrNoSubmissionsToEvaluate  = apperror.BadRequest("noSubmissionsToEvaluate", "there are no final submissions to evaluate")
	ErrPhaseEvaluationMissing   = apperror.BadRequest("phaseEvaluationMissing", "a required phase has no final evaluation")
	ErrTeamMismatch             = apperror.BadRequest("teamMismatch", "team_id does not match the project team")
	ErrRubricScopePhaseMismatch = apperror.BadRequest("rubricScopePhaseMismatch", "phase rubrics need a phase_id and project rubrics must not have one")
	ErrRubricCriteriaRequired   = apperror.BadRequest("rubricCriteriaRequired", "a rubric needs at least one criterion")
	ErrRubricScaleInvalid       = apperror.BadRequest("rubricScaleInvalid", "scale_min must be lower than scale_max")
	ErrValidationFailed         = apperror.BadRequest("validationFailed", "request validation failed")

	ErrRubricNotConfigured     = apperror.Conflict("rubricNotConfigured", "no rubric with criteria is configured")
	ErrEvaluationStatusChanged = apperror.Conflict("evaluationStatusChanged", "evaluation status changed since it was read")
	ErrSubmissionFinalized     = apperror.Conflict("submissionFinalized", "final submissions can no longer be edited")

	ErrTenantUnresolvable = apperror.Internal("tenantUnresolvable", "unable to determine tenant")

	ErrAIServiceNotConfigured = apperror.Unavailable("aiServiceNotConfigured", "AI evaluation service is not configured")

	ErrAIEvaluationFailed = apperror.New(apperror.KindUpstream, "aiEvaluationFailed", "AI evaluation failed")

	ErrSeedDisabled     = apperror.Forbidden("seedDisabled", "seeding is disabled")
	ErrSeedUnauthorized = apperror.Forbidden("seedUnauthorized", "invalid seed token")
)
