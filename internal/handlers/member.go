package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/dto"
	apierrors "github.com/yukikurage/orgperms-api/internal/errors"
	"github.com/yukikurage/orgperms-api/internal/middleware"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/services"
)

// MemberHandler serves membership and invitation routes.
type MemberHandler struct {
	memberService *services.MembershipService
}

func NewMemberHandler(memberService *services.MembershipService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

type memberRequest struct {
	UserID uint64       `json:"user_id" binding:"required"`
	Role   *models.Role `json:"role"`
}

// ListMembers lists the organization's members, owners first
func (h *MemberHandler) ListMembers(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	members, err := h.memberService.ListMembers(orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.ToOrganizationMemberDTOs(members)})
}

// AddMember adds a user as an accepted member. Adding an existing member
// returns the stored membership unchanged.
func (h *MemberHandler) AddMember(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.memberService.AddMember(orgID, req.UserID, req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationMemberDTO(*member))
}

// InviteMember records a pending invitation
func (h *MemberHandler) InviteMember(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, created, err := h.memberService.InviteMember(orgID, req.UserID, req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.ToOrganizationMemberDTO(*member))
}

// ChangeRole sets a member's role
func (h *MemberHandler) ChangeRole(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	userID, ok := uintParam(c, "user_id", "Invalid user ID")
	if !ok {
		return
	}

	var req struct {
		Role *models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.memberService.ChangeRole(orgID, userID, *req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationMemberDTO(*member))
}

// RemoveMember removes a member. The response names the member promoted
// to owner, if any.
func (h *MemberHandler) RemoveMember(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	userID, ok := uintParam(c, "user_id", "Invalid user ID")
	if !ok {
		return
	}

	promoted, err := h.memberService.RemoveMember(orgID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"removed_user_id": userID}
	if promoted != nil {
		resp["promoted_user_id"] = promoted.UserID
	}
	c.JSON(http.StatusOK, resp)
}

// AcceptInvitation accepts the caller's pending invitation
func (h *MemberHandler) AcceptInvitation(c *gin.Context) {
	h.respondToInvitation(c, true)
}

// RejectInvitation rejects the caller's pending invitation
func (h *MemberHandler) RejectInvitation(c *gin.Context) {
	h.respondToInvitation(c, false)
}

func (h *MemberHandler) respondToInvitation(c *gin.Context, accept bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	orgID, ok := organizationID(c)
	if !ok {
		return
	}

	member, err := h.memberService.RespondToInvitation(orgID, userID, accept)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationMemberDTO(*member))
}
