package models

import "time"

// OrganizationMember binds one user to one organization with one role.
// A row created without an explicit role is a Viewer with a pending invite.
type OrganizationMember struct {
	OrganizationID uint64       `gorm:"primarykey;autoIncrement:false" json:"organization_id"`
	UserID         uint64       `gorm:"primarykey;autoIncrement:false" json:"user_id"`
	Role           Role         `gorm:"column:role_level;not null;default:0" json:"role"`
	Status         InviteStatus `gorm:"type:varchar(12);not null;default:'pending'" json:"status"`
	JoinedAt       time.Time    `json:"joined_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// IsAccepted reports whether the membership is in effect. Pending and
// rejected invitations grant nothing.
func (m OrganizationMember) IsAccepted() bool {
	return m.Status == InviteStatusAccepted
}
