package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/orgperms-api/internal/utils"
)

// Paginate applies offset and limit from params.
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// InOrganization restricts a query to rows of one organization.
func InOrganization(organizationID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("organization_id = ?", organizationID)
	}
}

// OwnersFirst orders membership rows by organization, role descending, then
// user id. Promotion and member listings rely on this order.
func OwnersFirst(db *gorm.DB) *gorm.DB {
	return db.Order("organization_id ASC").
		Order("role_level DESC").
		Order("user_id ASC")
}
