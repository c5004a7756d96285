package repository

import (
	"errors"

	"github.com/yukikurage/orgperms-api/internal/database"
	"github.com/yukikurage/orgperms-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMemberRepository is a GORM implementation of MemberRepository
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &GormMemberRepository{db: db}
}

// GetOrCreate inserts member unless a row for the same (organization, user)
// already exists. The stored row is returned either way; created reports
// whether this call inserted it.
func (r *GormMemberRepository) GetOrCreate(member *models.OrganizationMember) (*models.OrganizationMember, bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(member)
	if result.Error != nil {
		return nil, false, result.Error
	}

	stored, err := r.FindMember(member.OrganizationID, member.UserID)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected > 0, nil
}

// FindMember finds a specific organization member
func (r *GormMemberRepository) FindMember(organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := r.db.Preload("Organization").
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers lists all members of an organization, owners first
func (r *GormMemberRepository) ListMembers(organizationID uint64) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	if err := r.db.Preload("User").
		Scopes(database.InOrganization(organizationID), database.OwnersFirst).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMember deletes a membership. When the last accepted owner leaves
// while other accepted members remain, the highest-ranking of them (lowest
// user id on ties) is promoted to owner in the same transaction. Pending and
// rejected rows never count as owners and are never promoted. The promoted
// member is returned, or nil when no promotion happened.
func (r *GormMemberRepository) RemoveMember(organizationID, userID uint64) (*models.OrganizationMember, error) {
	var promoted *models.OrganizationMember

	err := r.db.Transaction(func(tx *gorm.DB) error {
		members, err := lockMembers(tx, organizationID)
		if err != nil {
			return err
		}

		var target *models.OrganizationMember
		others := make([]models.OrganizationMember, 0, len(members))
		for i := range members {
			if members[i].UserID == userID {
				target = &members[i]
				continue
			}
			if members[i].IsAccepted() {
				others = append(others, members[i])
			}
		}
		if target == nil {
			return ErrMembershipNotFound
		}

		if isActiveOwner(*target) && len(others) > 0 && countOwners(others) == 0 {
			successor := others[0]
			if err := tx.Model(&models.OrganizationMember{}).
				Where("organization_id = ? AND user_id = ?", organizationID, successor.UserID).
				Update("role_level", models.RoleOwner).Error; err != nil {
				return err
			}
			successor.Role = models.RoleOwner
			promoted = &successor
		}

		return tx.Where("organization_id = ? AND user_id = ?", organizationID, userID).
			Delete(&models.OrganizationMember{}).Error
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// UpdateRole changes a member's role. Demoting the only accepted owner is
// refused while other accepted members remain.
func (r *GormMemberRepository) UpdateRole(organizationID, userID uint64, role models.Role) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		members, err := lockMembers(tx, organizationID)
		if err != nil {
			return err
		}

		var target *models.OrganizationMember
		accepted := make([]models.OrganizationMember, 0, len(members))
		for i := range members {
			if members[i].UserID == userID {
				target = &members[i]
			}
			if members[i].IsAccepted() {
				accepted = append(accepted, members[i])
			}
		}
		if target == nil {
			return ErrMembershipNotFound
		}

		if isActiveOwner(*target) && role != models.RoleOwner && countOwners(accepted) == 1 && len(accepted) > 1 {
			return ErrSoleOwner
		}

		return tx.Model(&models.OrganizationMember{}).
			Where("organization_id = ? AND user_id = ?", organizationID, userID).
			Update("role_level", role).Error
	})
}

// UpdateStatus moves a membership from one invite status to another
func (r *GormMemberRepository) UpdateStatus(organizationID, userID uint64, from, to models.InviteStatus) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var member models.OrganizationMember
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ? AND user_id = ?", organizationID, userID).
			First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMembershipNotFound
			}
			return err
		}

		if member.Status != from {
			return ErrStatusConflict
		}

		return tx.Model(&models.OrganizationMember{}).
			Where("organization_id = ? AND user_id = ?", organizationID, userID).
			Update("status", to).Error
	})
}

// lockMembers locks the organization row, then its membership rows, so
// changes to one organization's ownership are serialized.
func lockMembers(tx *gorm.DB, organizationID uint64) ([]models.OrganizationMember, error) {
	if _, err := lockOrganizations(tx, organizationID); err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}

	var members []models.OrganizationMember
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(database.InOrganization(organizationID), database.OwnersFirst).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func isActiveOwner(m models.OrganizationMember) bool {
	return m.IsAccepted() && m.Role == models.RoleOwner
}

func countOwners(members []models.OrganizationMember) int {
	n := 0
	for _, m := range members {
		if isActiveOwner(m) {
			n++
		}
	}
	return n
}
