// Package permissions holds the closed set of capabilities an organization
// membership can be checked against.
package permissions

import (
	"sort"

	"github.com/yukikurage/orgperms-api/internal/models"
)

// Capability names a permission rule.
type Capability string

const (
	IsViewer                Capability = "is_viewer"
	IsMember                Capability = "is_member"
	IsOwner                 Capability = "is_owner"
	IsParentOrgOwner        Capability = "is_parent_org_owner"
	CanCreateSubOrg         Capability = "can_create_sub_org"
	CanRemoveOrg            Capability = "can_remove_org"
	CanInviteMember         Capability = "can_invite_member"
	CanRemoveMember         Capability = "can_remove_member"
	CanModifyQueryThreshold Capability = "can_modify_query_threshold"
	CanViewSubOrgSettings   Capability = "can_view_sub_org_settings"
	CanViewSubOrgFields     Capability = "can_view_sub_org_fields"
	CanModifyData           Capability = "can_modify_data"
	CanViewData             Capability = "can_view_data"
)

// Predicate decides a capability for one membership.
type Predicate func(member *models.OrganizationMember) bool

func atLeast(role models.Role) Predicate {
	return func(member *models.OrganizationMember) bool {
		return member.Role.MeetsOrExceeds(role)
	}
}

// parentOrgOwner requires an owner of a top-level organization. The
// membership must carry its organization; an unloaded one never passes.
func parentOrgOwner(member *models.OrganizationMember) bool {
	if member.Organization.ID == 0 || member.Organization.ID != member.OrganizationID {
		return false
	}
	return member.Role.MeetsOrExceeds(models.RoleOwner) && !member.Organization.HasParent()
}

var rules = map[Capability]Predicate{
	IsViewer:                atLeast(models.RoleViewer),
	IsMember:                atLeast(models.RoleMember),
	IsOwner:                 atLeast(models.RoleOwner),
	IsParentOrgOwner:        parentOrgOwner,
	CanCreateSubOrg:         parentOrgOwner,
	CanRemoveOrg:            parentOrgOwner,
	CanInviteMember:         atLeast(models.RoleOwner),
	CanRemoveMember:         atLeast(models.RoleOwner),
	CanModifyQueryThreshold: parentOrgOwner,
	CanViewSubOrgSettings:   atLeast(models.RoleOwner),
	CanViewSubOrgFields:     parentOrgOwner,
	CanModifyData:           atLeast(models.RoleMember),
	CanViewData:             atLeast(models.RoleViewer),
}

// Lookup returns the predicate registered under name.
func Lookup(name string) (Predicate, bool) {
	p, ok := rules[Capability(name)]
	return p, ok
}

// Known reports whether name is a registered capability.
func Known(name string) bool {
	_, ok := rules[Capability(name)]
	return ok
}

// Evaluate checks name against member. Unknown names and nil memberships
// are denied.
func Evaluate(name string, member *models.OrganizationMember) bool {
	if member == nil {
		return false
	}
	p, ok := Lookup(name)
	if !ok {
		return false
	}
	return p(member)
}

// Names lists every registered capability in sorted order.
func Names() []string {
	names := make([]string, 0, len(rules))
	for c := range rules {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}
