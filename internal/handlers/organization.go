package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/dto"
	apierrors "github.com/yukikurage/orgperms-api/internal/errors"
	"github.com/yukikurage/orgperms-api/internal/middleware"
	"github.com/yukikurage/orgperms-api/internal/permissions"
	"github.com/yukikurage/orgperms-api/internal/services"
	"github.com/yukikurage/orgperms-api/internal/utils"
)

// OrganizationHandler serves organization, nesting and settings routes.
// Permission checks run in middleware before these handlers, except where
// the target organization is only known after a lookup.
type OrganizationHandler struct {
	orgService *services.OrganizationService
	gate       middleware.Authorizer
}

func NewOrganizationHandler(orgService *services.OrganizationService, gate middleware.Authorizer) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
		gate:       gate,
	}
}

type organizationRequest struct {
	Name           string `json:"name" binding:"required"`
	QueryThreshold *int   `json:"query_threshold"`
}

// CreateOrganization creates a top-level organization owned by the caller
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.CreateOrganization(services.CreateOrganizationInput{
		Name:           req.Name,
		QueryThreshold: req.QueryThreshold,
		OwnerID:        userID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*org))
}

// ListOrganizations returns the organizations the caller belongs to
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)
	memberships, total, err := h.orgService.ListOrganizationsForUser(userID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	orgs := make([]dto.OrganizationWithRoleDTO, len(memberships))
	for i, m := range memberships {
		orgs[i] = dto.ToOrganizationWithRoleDTO(m)
	}

	c.JSON(http.StatusOK, dto.OrganizationListResponse{
		Organizations: orgs,
		Pagination:    params.Response(total),
	})
}

// GetOrganization returns organization details
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	org, err := h.orgService.GetOrganization(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// UpdateOrganization renames an organization
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.UpdateOrganizationName(orgID, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// DeleteOrganization deletes an organization
func (h *OrganizationHandler) DeleteOrganization(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	if err := h.orgService.DeleteOrganization(orgID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSettings returns the organization's effective query threshold and
// exportable fields
func (h *OrganizationHandler) GetSettings(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	settings, err := h.orgService.GetSettings(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationSettingsDTO(settings))
}

// UpdateQueryThreshold sets or clears the organization's own threshold
func (h *OrganizationHandler) UpdateQueryThreshold(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req struct {
		QueryThreshold *int `json:"query_threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.UpdateQueryThreshold(orgID, req.QueryThreshold)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// ListExportableFields lists the organization's own exportable fields
func (h *OrganizationHandler) ListExportableFields(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	fields, err := h.orgService.ListExportableFields(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exportable_fields": dto.ToExportableFieldDTOs(fields)})
}

// AddExportableField registers an exportable field
func (h *OrganizationHandler) AddExportableField(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req struct {
		ModelType string `json:"model_type" binding:"required,max=100"`
		Name      string `json:"name" binding:"required,max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	field, err := h.orgService.AddExportableField(orgID, req.ModelType, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToExportableFieldDTO(*field))
}

// RemoveExportableField deletes one exportable field
func (h *OrganizationHandler) RemoveExportableField(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	fieldID, ok := uintParam(c, "field_id", "Invalid field ID")
	if !ok {
		return
	}

	if err := h.orgService.RemoveExportableField(orgID, fieldID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateChild creates a sub-organization under the organization. The
// caller becomes its owner.
func (h *OrganizationHandler) CreateChild(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	child, err := h.orgService.CreateSubOrganization(orgID, services.CreateOrganizationInput{
		Name:           req.Name,
		QueryThreshold: req.QueryThreshold,
		OwnerID:        userID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*child))
}

// GetChild returns the organization's child
func (h *OrganizationHandler) GetChild(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	child, err := h.orgService.GetChild(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*child))
}

// GetChildExportableFields lists the child's own exportable fields
func (h *OrganizationHandler) GetChildExportableFields(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	child, err := h.orgService.GetChild(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	fields, err := h.orgService.ListExportableFields(child.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization_id":   child.ID,
		"exportable_fields": dto.ToExportableFieldDTOs(fields),
	})
}

// SetParent links the organization under parent_id. Middleware checks the
// caller on both organizations.
func (h *OrganizationHandler) SetParent(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	parentID, err := middleware.BodyUint64(c, "parent_id")
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	if err := h.orgService.SetParent(orgID, parentID); err != nil {
		respondServiceError(c, err)
		return
	}

	org, err := h.orgService.GetOrganization(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// RemoveParent detaches the organization from its parent. The caller needs
// can_create_sub_org on the parent, which is only known after the lookup.
func (h *OrganizationHandler) RemoveParent(c *gin.Context) {
	identity, exists := middleware.GetIdentity(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	org, err := h.orgService.GetOrganization(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !org.HasParent() {
		respondServiceError(c, services.ErrNoParentOrganization)
		return
	}

	if _, err := h.gate.Authorize(identity, *org.ParentID, string(permissions.CanCreateSubOrg)); err != nil {
		middleware.RespondAuthorizationError(c, err)
		return
	}

	if err := h.orgService.RemoveParent(orgID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
