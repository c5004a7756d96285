package services

import (
	"errors"

	"github.com/yukikurage/orgperms-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrNestingViolation         = errors.New("organizations can only be nested one level deep")
	ErrOrganizationNotFound     = errors.New("organization not found")
	ErrActorNotInOrganization   = errors.New("user is not a member of the organization")
	ErrInsufficientPermission   = errors.New("insufficient permission")
	ErrMembershipNotFound       = errors.New("membership not found")
	ErrDuplicateExportableField = errors.New("exportable field already registered for this organization")
	ErrExportableFieldNotFound  = errors.New("exportable field not found")
	ErrInvalidOrganizationName  = errors.New("organization name must be 1 to 100 characters")
	ErrInvalidQueryThreshold    = errors.New("query threshold cannot be negative")
	ErrInvalidExportableField   = errors.New("model type and field name are required")
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvitationNotPending     = errors.New("invitation is not pending")
	ErrSoleOwner                = errors.New("organization would be left without an owner")
	ErrNoChildOrganization      = errors.New("organization has no child organization")
	ErrNoParentOrganization     = errors.New("organization has no parent organization")
)

// translateRepoError maps repository and GORM errors onto service errors.
// notFound is returned for gorm.ErrRecordNotFound, whose meaning depends on
// which row the caller looked up.
func translateRepoError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNestingViolation):
		return ErrNestingViolation
	case errors.Is(err, repository.ErrOrganizationNotFound):
		return ErrOrganizationNotFound
	case errors.Is(err, repository.ErrMembershipNotFound):
		return ErrMembershipNotFound
	case errors.Is(err, repository.ErrSoleOwner):
		return ErrSoleOwner
	case errors.Is(err, repository.ErrStatusConflict):
		return ErrInvitationNotPending
	case errors.Is(err, repository.ErrDuplicateExportableField):
		return ErrDuplicateExportableField
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	default:
		return err
	}
}
