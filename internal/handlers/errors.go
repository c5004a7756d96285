package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/orgperms-api/internal/errors"
	"github.com/yukikurage/orgperms-api/internal/middleware"
	"github.com/yukikurage/orgperms-api/internal/services"
)

// respondServiceError maps organization and membership errors to responses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrActorNotInOrganization),
		errors.Is(err, services.ErrInsufficientPermission):
		middleware.RespondAuthorizationError(c, err)
	case errors.Is(err, services.ErrNestingViolation):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeNestingViolation, err.Error())
	case errors.Is(err, services.ErrSoleOwner):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeSoleOwner, err.Error())
	case errors.Is(err, services.ErrDuplicateExportableField):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeAlreadyExists, err.Error())
	case errors.Is(err, services.ErrInvitationNotPending),
		errors.Is(err, services.ErrNoParentOrganization):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeInvalidOperation, err.Error())
	case errors.Is(err, services.ErrMembershipNotFound),
		errors.Is(err, services.ErrExportableFieldNotFound),
		errors.Is(err, services.ErrNoChildOrganization),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInvalidOrganizationName),
		errors.Is(err, services.ErrInvalidQueryThreshold),
		errors.Is(err, services.ErrInvalidExportableField),
		errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}

// organizationID reads the :id path parameter.
func organizationID(c *gin.Context) (uint64, bool) {
	return uintParam(c, "id", "Invalid organization ID")
}

func uintParam(c *gin.Context, name, message string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, message)
		return 0, false
	}
	return id, true
}
