package models

import "time"

// ExportableField marks one field of an external model type as safe to
// export for an organization.
type ExportableField struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	ModelType      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_exportable_fields_unique,priority:1" json:"model_type"`
	Name           string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_exportable_fields_unique,priority:2" json:"name"`
	OrganizationID uint64    `gorm:"not null;uniqueIndex:idx_exportable_fields_unique,priority:3" json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}
