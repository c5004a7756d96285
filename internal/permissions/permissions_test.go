package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/orgperms-api/internal/models"
)

var roles = []models.Role{models.RoleViewer, models.RoleMember, models.RoleOwner}

func membership(role models.Role, parentID *uint64) *models.OrganizationMember {
	return &models.OrganizationMember{
		OrganizationID: 1,
		UserID:         100,
		Role:           role,
		Status:         models.InviteStatusAccepted,
		Organization:   models.Organization{ID: 1, Name: "Big Daddy", ParentID: parentID},
	}
}

func TestEvaluate_Table(t *testing.T) {
	parentID := uint64(9)

	tests := []struct {
		capability Capability
		topLevel   [3]bool
		child      [3]bool
	}{
		{IsViewer, [3]bool{true, true, true}, [3]bool{true, true, true}},
		{IsMember, [3]bool{false, true, true}, [3]bool{false, true, true}},
		{IsOwner, [3]bool{false, false, true}, [3]bool{false, false, true}},
		{IsParentOrgOwner, [3]bool{false, false, true}, [3]bool{false, false, false}},
		{CanCreateSubOrg, [3]bool{false, false, true}, [3]bool{false, false, false}},
		{CanRemoveOrg, [3]bool{false, false, true}, [3]bool{false, false, false}},
		{CanInviteMember, [3]bool{false, false, true}, [3]bool{false, false, true}},
		{CanRemoveMember, [3]bool{false, false, true}, [3]bool{false, false, true}},
		{CanModifyQueryThreshold, [3]bool{false, false, true}, [3]bool{false, false, false}},
		{CanViewSubOrgSettings, [3]bool{false, false, true}, [3]bool{false, false, true}},
		{CanViewSubOrgFields, [3]bool{false, false, true}, [3]bool{false, false, false}},
		{CanModifyData, [3]bool{false, true, true}, [3]bool{false, true, true}},
		{CanViewData, [3]bool{true, true, true}, [3]bool{true, true, true}},
	}

	require.Len(t, tests, len(Names()))

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			for i, role := range roles {
				assert.Equal(t, tt.topLevel[i], Evaluate(string(tt.capability), membership(role, nil)), "top-level %s", role)
				assert.Equal(t, tt.child[i], Evaluate(string(tt.capability), membership(role, &parentID)), "child %s", role)
			}
		})
	}
}

func TestEvaluate_UnknownCapabilityDenied(t *testing.T) {
	for _, role := range roles {
		assert.False(t, Evaluate("can_launch_rockets", membership(role, nil)))
		assert.False(t, Evaluate("", membership(role, nil)))
		assert.False(t, Evaluate("IS_OWNER", membership(role, nil)))
	}

	_, ok := Lookup("can_launch_rockets")
	assert.False(t, ok)
	assert.False(t, Known("can_launch_rockets"))
}

func TestEvaluate_NilMembershipDenied(t *testing.T) {
	for _, name := range Names() {
		assert.False(t, Evaluate(name, nil), name)
	}
}

func TestEvaluate_UnloadedOrganizationDenied(t *testing.T) {
	member := &models.OrganizationMember{OrganizationID: 1, UserID: 2, Role: models.RoleOwner}
	assert.False(t, Evaluate(string(IsParentOrgOwner), member))
	assert.True(t, Evaluate(string(IsOwner), member))
}

func TestEvaluate_RoleMonotonicity(t *testing.T) {
	parentID := uint64(3)
	for _, name := range Names() {
		for _, parent := range []*uint64{nil, &parentID} {
			for i := range roles {
				for j := i; j < len(roles); j++ {
					if Evaluate(name, membership(roles[i], parent)) {
						assert.True(t, Evaluate(name, membership(roles[j], parent)),
							"%s granted to %s but not %s", name, roles[i], roles[j])
					}
				}
			}
		}
	}
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "is_parent_org_owner")
	assert.IsNonDecreasing(t, names)
	for _, name := range names {
		assert.True(t, Known(name))
	}
}
