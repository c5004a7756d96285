package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/dto"
	apierrors "github.com/yukikurage/orgperms-api/internal/errors"
	"github.com/yukikurage/orgperms-api/internal/middleware"
	"github.com/yukikurage/orgperms-api/internal/permissions"
	"github.com/yukikurage/orgperms-api/internal/services"
)

// PermissionHandler exposes the gate to clients.
type PermissionHandler struct {
	gate middleware.Authorizer
}

func NewPermissionHandler(gate middleware.Authorizer) *PermissionHandler {
	return &PermissionHandler{gate: gate}
}

// ListCapabilities returns every capability name
func (h *PermissionHandler) ListCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CapabilityListResponse{Capabilities: permissions.Names()})
}

// Check reports whether the caller holds a capability in an organization.
// Denials are answered with 200 and a reason; a missing organization is 404.
func (h *PermissionHandler) Check(c *gin.Context) {
	identity, exists := middleware.GetIdentity(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req struct {
		OrganizationID uint64 `json:"organization_id" binding:"required"`
		Capability     string `json:"capability" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "organization_id and capability are required")
		return
	}

	resp := dto.PermissionCheckResponse{
		OrganizationID: req.OrganizationID,
		Capability:     req.Capability,
	}

	grant, err := h.gate.Authorize(identity, req.OrganizationID, req.Capability)
	switch {
	case err == nil:
		resp.Allowed = true
		resp.Bypassed = grant.Bypassed
	case errors.Is(err, services.ErrActorNotInOrganization):
		resp.Reason = apierrors.ErrCodeNotInOrganization
	case errors.Is(err, services.ErrInsufficientPermission):
		resp.Reason = apierrors.ErrCodeInsufficientPermissions
	default:
		middleware.RespondAuthorizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
