package dto

import (
	"time"

	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/services"
	"github.com/yukikurage/orgperms-api/internal/utils"
)

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	ParentID       *uint64   `json:"parent_id"`
	QueryThreshold *int      `json:"query_threshold"`
	CreatedAt      time.Time `json:"created_at"`
}

// OrganizationWithRoleDTO represents an organization with the user's role
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role   models.Role         `json:"role"`
	Status models.InviteStatus `json:"status"`
}

// OrganizationListResponse is a page of the caller's organizations
type OrganizationListResponse struct {
	Organizations []OrganizationWithRoleDTO `json:"organizations"`
	Pagination    utils.PaginationResponse  `json:"pagination"`
}

// OrganizationMemberDTO represents a member in an organization
type OrganizationMemberDTO struct {
	OrganizationID uint64              `json:"organization_id"`
	User           UserDTO             `json:"user"`
	Role           models.Role         `json:"role"`
	Status         models.InviteStatus `json:"status"`
	JoinedAt       time.Time           `json:"joined_at"`
}

// ExportableFieldDTO represents an exportable field
type ExportableFieldDTO struct {
	ID             uint64 `json:"id"`
	ModelType      string `json:"model_type"`
	Name           string `json:"name"`
	OrganizationID uint64 `json:"organization_id"`
}

// OrganizationSettingsDTO is an organization's effective configuration.
// InheritedFrom is set when the values come from the parent.
type OrganizationSettingsDTO struct {
	Organization              OrganizationDTO      `json:"organization"`
	EffectiveQueryThreshold   *int                 `json:"effective_query_threshold"`
	EffectiveExportableFields []ExportableFieldDTO `json:"effective_exportable_fields"`
	InheritedFrom             *uint64              `json:"inherited_from"`
}

// ToOrganizationDTO converts an organization model to DTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:             org.ID,
		Name:           org.Name,
		ParentID:       org.ParentID,
		QueryThreshold: org.QueryThreshold,
		CreatedAt:      org.CreatedAt,
	}
}

// ToOrganizationWithRoleDTO converts an organization member to DTO with role
func ToOrganizationWithRoleDTO(member models.OrganizationMember) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(member.Organization),
		Role:            member.Role,
		Status:          member.Status,
	}
}

// ToOrganizationMemberDTO converts a member to DTO
func ToOrganizationMemberDTO(member models.OrganizationMember) OrganizationMemberDTO {
	user := ToUserDTO(member.User)
	if user.ID == 0 {
		user.ID = member.UserID
	}
	return OrganizationMemberDTO{
		OrganizationID: member.OrganizationID,
		User:           user,
		Role:           member.Role,
		Status:         member.Status,
		JoinedAt:       member.JoinedAt,
	}
}

// ToOrganizationMemberDTOs converts a member list
func ToOrganizationMemberDTOs(members []models.OrganizationMember) []OrganizationMemberDTO {
	out := make([]OrganizationMemberDTO, len(members))
	for i, member := range members {
		out[i] = ToOrganizationMemberDTO(member)
	}
	return out
}

// ToExportableFieldDTO converts an exportable field to DTO
func ToExportableFieldDTO(field models.ExportableField) ExportableFieldDTO {
	return ExportableFieldDTO{
		ID:             field.ID,
		ModelType:      field.ModelType,
		Name:           field.Name,
		OrganizationID: field.OrganizationID,
	}
}

// ToExportableFieldDTOs converts a field list
func ToExportableFieldDTOs(fields []models.ExportableField) []ExportableFieldDTO {
	out := make([]ExportableFieldDTO, len(fields))
	for i, field := range fields {
		out[i] = ToExportableFieldDTO(field)
	}
	return out
}

// ToOrganizationSettingsDTO converts resolved settings to DTO
func ToOrganizationSettingsDTO(settings *services.OrganizationSettings) OrganizationSettingsDTO {
	return OrganizationSettingsDTO{
		Organization:              ToOrganizationDTO(*settings.Organization),
		EffectiveQueryThreshold:   settings.EffectiveQueryThreshold,
		EffectiveExportableFields: ToExportableFieldDTOs(settings.EffectiveExportableFields),
		InheritedFrom:             settings.InheritedFrom,
	}
}
