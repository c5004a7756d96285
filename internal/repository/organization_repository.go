package repository

import (
	"errors"
	"fmt"

	"github.com/yukikurage/orgperms-api/internal/database"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// Create creates a new organization
func (r *GormOrganizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

// CreateWithOwner creates an organization and its first member in one transaction.
func (r *GormOrganizationRepository) CreateWithOwner(org *models.Organization, owner *models.OrganizationMember) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}

		owner.OrganizationID = org.ID
		return tx.Create(owner).Error
	})
}

// CreateChild creates org and links it under parentID in one transaction.
// The parent row stays locked until commit, so a concurrent link to the same
// parent waits and then fails the nesting check.
func (r *GormOrganizationRepository) CreateChild(parentID uint64, org *models.Organization, owner *models.OrganizationMember) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrganizations(tx, parentID); err != nil {
			return err
		}

		org.ParentID = nil
		if err := tx.Create(org).Error; err != nil {
			return err
		}

		if err := setParentTx(tx, org.ID, parentID); err != nil {
			return err
		}
		org.ParentID = &parentID

		if owner == nil {
			return nil
		}
		owner.OrganizationID = org.ID
		return tx.Create(owner).Error
	})
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(id uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindChild finds the organization linked under parentID
func (r *GormOrganizationRepository) FindChild(parentID uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Where("parent_id = ?", parentID).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// HasChild reports whether any organization is linked under id
func (r *GormOrganizationRepository) HasChild(id uint64) (bool, error) {
	return hasChild(r.db, id)
}

// ListForUser lists a user's memberships with their organizations, paginated
func (r *GormOrganizationRepository) ListForUser(userID uint64, params utils.PaginationParams) ([]models.OrganizationMember, int64, error) {
	query := r.db.Model(&models.OrganizationMember{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var memberships []models.OrganizationMember
	if err := query.
		Preload("Organization").
		Order("organization_id ASC").
		Scopes(database.Paginate(params)).
		Find(&memberships).Error; err != nil {
		return nil, 0, err
	}

	return memberships, total, nil
}

// Update updates an organization's name. Parent links and thresholds have
// their own guarded writes.
func (r *GormOrganizationRepository) Update(org *models.Organization) error {
	return r.db.Model(org).Select("name", "updated_at").Updates(org).Error
}

// UpdateQueryThreshold sets or clears the organization's own query threshold
func (r *GormOrganizationRepository) UpdateQueryThreshold(id uint64, threshold *int) error {
	return r.db.Model(&models.Organization{}).Where("id = ?", id).Update("query_threshold", threshold).Error
}

// Delete deletes an organization and everything it owns in a transaction.
// Relations are removed explicitly rather than through database cascades.
func (r *GormOrganizationRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrganizations(tx, id); err != nil {
			return err
		}

		// Delete exportable fields
		if err := tx.Where("organization_id = ?", id).Delete(&models.ExportableField{}).Error; err != nil {
			return err
		}

		// Delete all members
		if err := tx.Where("organization_id = ?", id).Delete(&models.OrganizationMember{}).Error; err != nil {
			return err
		}

		// Detach the child, which becomes a top-level organization
		if err := tx.Model(&models.Organization{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return err
		}

		// Delete organization
		return tx.Delete(&models.Organization{}, id).Error
	})
}

// SetParent links orgID under parentID. Both rows are locked before the
// topology is read, so concurrent links touching either organization are
// serialized and cannot jointly build a two-level chain.
func (r *GormOrganizationRepository) SetParent(orgID, parentID uint64) error {
	if orgID == parentID {
		return fmt.Errorf("%w: organization %d cannot be its own parent", ErrNestingViolation, orgID)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrganizations(tx, orgID, parentID); err != nil {
			return err
		}
		return setParentTx(tx, orgID, parentID)
	})
}

// ClearParent removes orgID's parent link
func (r *GormOrganizationRepository) ClearParent(orgID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockOrganizations(tx, orgID); err != nil {
			return err
		}
		return tx.Model(&models.Organization{}).Where("id = ?", orgID).Update("parent_id", nil).Error
	})
}

// setParentTx validates and writes the link. Callers must hold row locks on
// both organizations.
func setParentTx(tx *gorm.DB, orgID, parentID uint64) error {
	var org, parent models.Organization
	if err := tx.First(&org, orgID).Error; err != nil {
		return mapOrganizationLookup(err)
	}
	if err := tx.First(&parent, parentID).Error; err != nil {
		return mapOrganizationLookup(err)
	}

	if org.ParentID != nil {
		if *org.ParentID == parentID {
			return nil
		}
		return fmt.Errorf("%w: organization %d already has parent %d", ErrNestingViolation, orgID, *org.ParentID)
	}
	if parent.ParentID != nil {
		return fmt.Errorf("%w: organization %d is itself a child of %d", ErrNestingViolation, parentID, *parent.ParentID)
	}

	orgHasChild, err := hasChild(tx, orgID)
	if err != nil {
		return err
	}
	if orgHasChild {
		return fmt.Errorf("%w: organization %d already has a child", ErrNestingViolation, orgID)
	}

	parentHasChild, err := hasChild(tx, parentID)
	if err != nil {
		return err
	}
	if parentHasChild {
		return fmt.Errorf("%w: organization %d already has a child", ErrNestingViolation, parentID)
	}

	if err := tx.Model(&models.Organization{}).Where("id = ?", orgID).Update("parent_id", parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: organization %d already has a child", ErrNestingViolation, parentID)
		}
		return err
	}
	return nil
}

// lockOrganizations takes row locks on the given organizations in id order.
func lockOrganizations(tx *gorm.DB, ids ...uint64) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&orgs).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	if len(orgs) != len(seen) {
		return nil, ErrOrganizationNotFound
	}
	return orgs, nil
}

func hasChild(db *gorm.DB, id uint64) (bool, error) {
	var count int64
	if err := db.Model(&models.Organization{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func mapOrganizationLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrganizationNotFound
	}
	return err
}
