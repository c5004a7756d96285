package models

import (
	"time"
)

// Organization is a tenant. It may be linked under exactly one parent, and a
// parent may hold exactly one child; ParentID lives on the child and its
// unique index caps the parent side.
type Organization struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	Name           string    `gorm:"type:varchar(100);not null" json:"name"`
	ParentID       *uint64   `gorm:"uniqueIndex:idx_organizations_parent_id" json:"parent_id"`
	QueryThreshold *int      `json:"query_threshold"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Members          []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"-"`
	ExportableFields []ExportableField    `gorm:"foreignKey:OrganizationID" json:"-"`
}

// HasParent reports whether the organization is linked under a parent.
func (o Organization) HasParent() bool {
	return o.ParentID != nil
}
