package repository

import (
	"errors"

	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/utils"
)

var (
	// ErrOrganizationNotFound is returned when a locked lookup misses an organization.
	ErrOrganizationNotFound = errors.New("organization repository: organization not found")
	// ErrNestingViolation is returned when a parent link would exceed one level of nesting.
	ErrNestingViolation = errors.New("organization repository: nesting deeper than one level")
	// ErrMembershipNotFound is returned when no membership exists for the (organization, user) pair.
	ErrMembershipNotFound = errors.New("member repository: membership not found")
	// ErrSoleOwner is returned when a role change would leave members without an owner.
	ErrSoleOwner = errors.New("member repository: organization would be left without an owner")
	// ErrStatusConflict is returned when a membership is not in the expected invite status.
	ErrStatusConflict = errors.New("member repository: unexpected invite status")
	// ErrDuplicateExportableField is returned when (model type, name, organization) already exists.
	ErrDuplicateExportableField = errors.New("exportable field repository: field already registered")
)

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// Create creates a new organization
	Create(org *models.Organization) error

	// CreateWithOwner creates an organization and its first member atomically
	CreateWithOwner(org *models.Organization, owner *models.OrganizationMember) error

	// CreateChild creates an organization linked under parentID, with an optional owner, atomically
	CreateChild(parentID uint64, org *models.Organization, owner *models.OrganizationMember) error

	// FindByID finds an organization by ID
	FindByID(id uint64) (*models.Organization, error)

	// FindChild finds the organization linked under parentID
	FindChild(parentID uint64) (*models.Organization, error)

	// HasChild reports whether any organization is linked under id
	HasChild(id uint64) (bool, error)

	// ListForUser lists a user's memberships with their organizations, paginated
	ListForUser(userID uint64, params utils.PaginationParams) ([]models.OrganizationMember, int64, error)

	// Update updates an organization's scalar columns
	Update(org *models.Organization) error

	// UpdateQueryThreshold sets or clears the organization's own query threshold
	UpdateQueryThreshold(id uint64, threshold *int) error

	// Delete deletes an organization, its fields and memberships, and detaches its child
	Delete(id uint64) error

	// SetParent links orgID under parentID, enforcing the one-level nesting cap
	SetParent(orgID, parentID uint64) error

	// ClearParent removes orgID's parent link
	ClearParent(orgID uint64) error
}

// MemberRepository defines the interface for membership data access
type MemberRepository interface {
	// GetOrCreate inserts member unless the (organization, user) pair exists, and returns the stored row
	GetOrCreate(member *models.OrganizationMember) (*models.OrganizationMember, bool, error)

	// FindMember finds a membership with its organization loaded
	FindMember(organizationID, userID uint64) (*models.OrganizationMember, error)

	// ListMembers lists an organization's members, owners first
	ListMembers(organizationID uint64) ([]models.OrganizationMember, error)

	// RemoveMember deletes a membership, promoting a successor owner when required
	RemoveMember(organizationID, userID uint64) (*models.OrganizationMember, error)

	// UpdateRole changes a member's role without leaving the organization ownerless
	UpdateRole(organizationID, userID uint64, role models.Role) error

	// UpdateStatus moves a membership from one invite status to another
	UpdateStatus(organizationID, userID uint64, from, to models.InviteStatus) error
}

// ExportableFieldRepository defines the interface for exportable field data access
type ExportableFieldRepository interface {
	// Create registers a field, rejecting duplicates
	Create(field *models.ExportableField) error

	// ListByOrganization lists the organization's own fields ordered by name
	ListByOrganization(organizationID uint64) ([]models.ExportableField, error)

	// Delete removes one of the organization's fields
	Delete(organizationID, fieldID uint64) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}
