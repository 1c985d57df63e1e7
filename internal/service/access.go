package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/apperror"
	"github.com/noah-isme/gema-program-api/internal/repository"
)

// Tenant roles understood by the access policy.
const (
	RoleTenantAdmin = "tenant_admin"
	RoleOrganizer   = "organizer"
	RoleMentor      = "mentor"
	RoleEvaluator   = "evaluator"
	RoleParticipant = "participant"
)

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID       uint
	Role         string
	TenantID     uint
	IsSuperAdmin bool
}

func (c Caller) role() string {
	return strings.ToLower(strings.TrimSpace(c.Role))
}

// IsManager reports whether the caller may configure the event.
func (c Caller) IsManager() bool {
	if c.IsSuperAdmin {
		return true
	}
	switch c.role() {
	case RoleTenantAdmin, RoleOrganizer:
		return true
	}
	return false
}

// IsReviewer reports whether the caller may evaluate work.
func (c Caller) IsReviewer() bool {
	if c.IsManager() {
		return true
	}
	switch c.role() {
	case RoleMentor, RoleEvaluator:
		return true
	}
	return false
}

// AccessPolicy answers the capability questions shared by every read and write path.
type AccessPolicy struct {
	program repository.ProgramRepository
}

// NewAccessPolicy constructs the access policy.
func NewAccessPolicy(program repository.ProgramRepository) *AccessPolicy {
	return &AccessPolicy{program: program}
}

// CanViewTeam reports whether the caller may see the work of a team.
func (p *AccessPolicy) CanViewTeam(ctx context.Context, caller Caller, teamID uint) (bool, error) {
	if caller.IsReviewer() {
		return true, nil
	}
	if caller.UserID == 0 || teamID == 0 {
		return false, nil
	}
	return p.program.IsTeamMember(ctx, teamID, caller.UserID)
}

// RequireTeamView fails with ErrForbidden unless CanViewTeam holds.
func (p *AccessPolicy) RequireTeamView(ctx context.Context, caller Caller, teamID uint) error {
	allowed, err := p.CanViewTeam(ctx, caller, teamID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// RequireReviewer fails unless the caller is a reviewer.
func (p *AccessPolicy) RequireReviewer(caller Caller) error {
	if !caller.IsReviewer() {
		return ErrReviewerRequired
	}
	return nil
}

// RequireManager fails unless the caller is a manager.
func (p *AccessPolicy) RequireManager(caller Caller) error {
	if !caller.IsManager() {
		return ErrManagerRequired
	}
	return nil
}

// EnsureTenant hides resources owned by another tenant behind notFound.
func (p *AccessPolicy) EnsureTenant(caller Caller, resourceTenant uint, notFound error) error {
	if caller.IsSuperAdmin || resourceTenant == 0 || caller.TenantID == 0 {
		return nil
	}
	if resourceTenant != caller.TenantID {
		return notFound
	}
	return nil
}

// resolveTenant picks the owning resource tenant, then the request tenant.
func resolveTenant(resourceTenant uint, caller Caller) (uint, error) {
	if resourceTenant != 0 {
		return resourceTenant, nil
	}
	if caller.TenantID != 0 {
		return caller.TenantID, nil
	}
	return 0, ErrTenantUnresolvable
}

// notFoundOr converts gorm.ErrRecordNotFound into the given sentinel.
func notFoundOr(err error, sentinel *apperror.Error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
