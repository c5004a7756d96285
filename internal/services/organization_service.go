package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yukikurage/orgperms-api/internal/constants"
	"github.com/yukikurage/orgperms-api/internal/logging"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/repository"
	"github.com/yukikurage/orgperms-api/internal/utils"
	"gorm.io/gorm"
)

// OrganizationService provides business logic for organization operations.
type OrganizationService struct {
	orgRepo   repository.OrganizationRepository
	fieldRepo repository.ExportableFieldRepository
	logger    *slog.Logger
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo repository.OrganizationRepository, fieldRepo repository.ExportableFieldRepository, logger *slog.Logger) *OrganizationService {
	return &OrganizationService{
		orgRepo:   orgRepo,
		fieldRepo: fieldRepo,
		logger:    logging.Resolve(logger),
	}
}

// CreateOrganizationInput represents parameters to create a new organization.
// A zero OwnerID creates the organization without members.
type CreateOrganizationInput struct {
	Name           string
	QueryThreshold *int
	OwnerID        uint64
}

// OrganizationSettings is an organization together with the configuration
// it actually runs with.
type OrganizationSettings struct {
	Organization              *models.Organization
	EffectiveQueryThreshold   *int
	EffectiveExportableFields []models.ExportableField
	InheritedFrom             *uint64
}

func (input CreateOrganizationInput) build() (*models.Organization, *models.OrganizationMember, error) {
	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, nil, err
	}
	if err := validateThreshold(input.QueryThreshold); err != nil {
		return nil, nil, err
	}

	org := &models.Organization{
		Name:           name,
		QueryThreshold: input.QueryThreshold,
	}

	if input.OwnerID == 0 {
		return org, nil, nil
	}
	owner := &models.OrganizationMember{
		UserID:   input.OwnerID,
		Role:     models.RoleOwner,
		Status:   models.InviteStatusAccepted,
		JoinedAt: time.Now(),
	}
	return org, owner, nil
}

// CreateOrganization creates a top-level organization. When OwnerID is set
// that user becomes its owner in the same transaction.
func (s *OrganizationService) CreateOrganization(input CreateOrganizationInput) (*models.Organization, error) {
	org, owner, err := input.build()
	if err != nil {
		return nil, err
	}

	if owner == nil {
		err = s.orgRepo.Create(org)
	} else {
		err = s.orgRepo.CreateWithOwner(org, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.logger.Info("organization created", "organization_id", org.ID, "owner_id", input.OwnerID)
	return org, nil
}

// CreateSubOrganization creates an organization and links it under parentID.
// Nothing is persisted when the link would break the nesting rules.
func (s *OrganizationService) CreateSubOrganization(parentID uint64, input CreateOrganizationInput) (*models.Organization, error) {
	org, owner, err := input.build()
	if err != nil {
		return nil, err
	}

	if err := s.orgRepo.CreateChild(parentID, org, owner); err != nil {
		if mapped := translateRepoError(err, nil); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create sub-organization: %w", err)
	}

	s.logger.Info("sub-organization created", "organization_id", org.ID, "parent_id", parentID)
	return org, nil
}

// GetOrganization returns an organization by ID.
func (s *OrganizationService) GetOrganization(orgID uint64) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

// GetChild returns the organization linked under orgID.
func (s *OrganizationService) GetChild(orgID uint64) (*models.Organization, error) {
	if _, err := s.GetOrganization(orgID); err != nil {
		return nil, err
	}

	child, err := s.orgRepo.FindChild(orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoChildOrganization
		}
		return nil, fmt.Errorf("failed to find child organization: %w", err)
	}
	return child, nil
}

// IsParent reports whether the organization has a child.
func (s *OrganizationService) IsParent(orgID uint64) (bool, error) {
	if _, err := s.GetOrganization(orgID); err != nil {
		return false, err
	}

	hasChild, err := s.orgRepo.HasChild(orgID)
	if err != nil {
		return false, fmt.Errorf("failed to check child organization: %w", err)
	}
	return hasChild, nil
}

// SetParent links orgID under parentID. It fails with ErrNestingViolation
// when the link would nest deeper than one level, and leaves both
// organizations unchanged in that case.
func (s *OrganizationService) SetParent(orgID, parentID uint64) error {
	if err := s.orgRepo.SetParent(orgID, parentID); err != nil {
		if mapped := translateRepoError(err, ErrOrganizationNotFound); mapped != err {
			s.logger.Debug("parent link rejected", "organization_id", orgID, "parent_id", parentID, "error", err)
			return mapped
		}
		return fmt.Errorf("failed to set parent organization: %w", err)
	}

	s.logger.Info("organization linked", "organization_id", orgID, "parent_id", parentID)
	return nil
}

// RemoveParent detaches orgID from its parent.
func (s *OrganizationService) RemoveParent(orgID uint64) error {
	org, err := s.GetOrganization(orgID)
	if err != nil {
		return err
	}
	if !org.HasParent() {
		return ErrNoParentOrganization
	}

	if err := s.orgRepo.ClearParent(orgID); err != nil {
		if mapped := translateRepoError(err, ErrOrganizationNotFound); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to remove parent organization: %w", err)
	}

	s.logger.Info("organization unlinked", "organization_id", orgID, "parent_id", *org.ParentID)
	return nil
}

// GetEffectiveExportableFields returns the parent's own fields when orgID
// has a parent, otherwise orgID's own fields.
func (s *OrganizationService) GetEffectiveExportableFields(orgID uint64) ([]models.ExportableField, error) {
	org, err := s.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	return s.effectiveFields(org)
}

// GetEffectiveQueryThreshold returns the parent's threshold when orgID has a
// parent, otherwise orgID's own. A nil result means no threshold is set.
func (s *OrganizationService) GetEffectiveQueryThreshold(orgID uint64) (*int, error) {
	org, err := s.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	return s.effectiveThreshold(org)
}

// GetSettings resolves the organization's effective configuration.
func (s *OrganizationService) GetSettings(orgID uint64) (*OrganizationSettings, error) {
	org, err := s.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}

	threshold, err := s.effectiveThreshold(org)
	if err != nil {
		return nil, err
	}
	fields, err := s.effectiveFields(org)
	if err != nil {
		return nil, err
	}

	return &OrganizationSettings{
		Organization:              org,
		EffectiveQueryThreshold:   threshold,
		EffectiveExportableFields: fields,
		InheritedFrom:             org.ParentID,
	}, nil
}

func (s *OrganizationService) effectiveThreshold(org *models.Organization) (*int, error) {
	if !org.HasParent() {
		return org.QueryThreshold, nil
	}

	parent, err := s.orgRepo.FindByID(*org.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find parent organization: %w", err)
	}
	return parent.QueryThreshold, nil
}

func (s *OrganizationService) effectiveFields(org *models.Organization) ([]models.ExportableField, error) {
	source := org.ID
	if org.HasParent() {
		source = *org.ParentID
	}

	fields, err := s.fieldRepo.ListByOrganization(source)
	if err != nil {
		return nil, fmt.Errorf("failed to list exportable fields: %w", err)
	}
	return fields, nil
}

// ListOrganizationsForUser returns the user's memberships, paginated.
func (s *OrganizationService) ListOrganizationsForUser(userID uint64, params utils.PaginationParams) ([]models.OrganizationMember, int64, error) {
	memberships, total, err := s.orgRepo.ListForUser(userID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	return memberships, total, nil
}

// UpdateOrganizationName updates an organization's name.
func (s *OrganizationService) UpdateOrganizationName(orgID uint64, name string) (*models.Organization, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	org, err := s.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}

	org.Name = name
	if err := s.orgRepo.Update(org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// UpdateQueryThreshold sets or, with nil, clears the organization's own
// threshold. A child keeps inheriting its parent's value regardless.
func (s *OrganizationService) UpdateQueryThreshold(orgID uint64, threshold *int) (*models.Organization, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	org, err := s.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}

	if err := s.orgRepo.UpdateQueryThreshold(orgID, threshold); err != nil {
		return nil, fmt.Errorf("failed to update query threshold: %w", err)
	}

	org.QueryThreshold = threshold
	return org, nil
}

// DeleteOrganization removes an organization with its fields and memberships.
// Its child, if any, becomes a top-level organization.
func (s *OrganizationService) DeleteOrganization(orgID uint64) error {
	if err := s.orgRepo.Delete(orgID); err != nil {
		if mapped := translateRepoError(err, ErrOrganizationNotFound); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	s.logger.Info("organization deleted", "organization_id", orgID)
	return nil
}

// AddExportableField registers a field on the organization itself.
func (s *OrganizationService) AddExportableField(orgID uint64, modelType, fieldName string) (*models.ExportableField, error) {
	modelType = strings.TrimSpace(modelType)
	fieldName = strings.TrimSpace(fieldName)
	if modelType == "" || fieldName == "" {
		return nil, ErrInvalidExportableField
	}

	if _, err := s.GetOrganization(orgID); err != nil {
		return nil, err
	}

	field := &models.ExportableField{
		ModelType:      modelType,
		Name:           fieldName,
		OrganizationID: orgID,
	}
	if err := s.fieldRepo.Create(field); err != nil {
		if errors.Is(err, repository.ErrDuplicateExportableField) {
			return nil, ErrDuplicateExportableField
		}
		return nil, fmt.Errorf("failed to create exportable field: %w", err)
	}

	return field, nil
}

// ListExportableFields returns the organization's own fields, ignoring any parent.
func (s *OrganizationService) ListExportableFields(orgID uint64) ([]models.ExportableField, error) {
	if _, err := s.GetOrganization(orgID); err != nil {
		return nil, err
	}

	fields, err := s.fieldRepo.ListByOrganization(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exportable fields: %w", err)
	}
	return fields, nil
}

// RemoveExportableField deletes one of the organization's own fields.
func (s *OrganizationService) RemoveExportableField(orgID, fieldID uint64) error {
	if err := s.fieldRepo.Delete(orgID, fieldID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExportableFieldNotFound
		}
		return fmt.Errorf("failed to delete exportable field: %w", err)
	}
	return nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > constants.MaxOrgNameLength {
		return "", ErrInvalidOrganizationName
	}
	return name, nil
}

func validateThreshold(threshold *int) error {
	if threshold != nil && *threshold < 0 {
		return ErrInvalidQueryThreshold
	}
	return nil
}
