package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/orgperms-api/internal/database"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// RepositoryTestSuite exercises the GORM repositories against in-memory SQLite
type RepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	orgs    OrganizationRepository
	members MemberRepository
	fields  ExportableFieldRepository
	users   UserRepository
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)

	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	// Memberships below reference users that are never created.
	s.Require().NoError(db.Exec("PRAGMA foreign_keys = OFF").Error)
	s.Require().NoError(db.AutoMigrate(database.Models()...))

	s.db = db
	s.orgs = NewOrganizationRepository(db)
	s.members = NewMemberRepository(db)
	s.fields = NewExportableFieldRepository(db)
	s.users = NewUserRepository(db)
}

func (s *RepositoryTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	sqlDB.Close()
}

func (s *RepositoryTestSuite) createOrg(name string) *models.Organization {
	org := &models.Organization{Name: name}
	s.Require().NoError(s.orgs.Create(org))
	return org
}

func (s *RepositoryTestSuite) addMember(orgID, userID uint64, role models.Role) {
	_, _, err := s.members.GetOrCreate(&models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Status:         models.InviteStatusAccepted,
		JoinedAt:       time.Now(),
	})
	s.Require().NoError(err)
}

func (s *RepositoryTestSuite) reload(id uint64) *models.Organization {
	org, err := s.orgs.FindByID(id)
	s.Require().NoError(err)
	return org
}

func (s *RepositoryTestSuite) TestSetParent_OneLevel() {
	parent := s.createOrg("Big Daddy")
	child := s.createOrg("Little Sister")

	s.Require().NoError(s.orgs.SetParent(child.ID, parent.ID))

	refreshedChild := s.reload(child.ID)
	s.Require().NotNil(refreshedChild.ParentID)
	s.Equal(parent.ID, *refreshedChild.ParentID)

	found, err := s.orgs.FindChild(parent.ID)
	s.Require().NoError(err)
	s.Equal(child.ID, found.ID)

	hasChild, err := s.orgs.HasChild(parent.ID)
	s.Require().NoError(err)
	s.True(hasChild)

	// Relinking the same pair is a no-op.
	s.NoError(s.orgs.SetParent(child.ID, parent.ID))
}

func (s *RepositoryTestSuite) TestSetParent_RejectsSecondLevel() {
	parent := s.createOrg("Big Daddy")
	child := s.createOrg("Little Sister")
	baby := s.createOrg("Baby Sister")

	s.Require().NoError(s.orgs.SetParent(child.ID, parent.ID))

	err := s.orgs.SetParent(baby.ID, child.ID)
	s.ErrorIs(err, ErrNestingViolation)
	s.Nil(s.reload(baby.ID).ParentID)

	// A parent cannot itself be placed under another organization.
	err = s.orgs.SetParent(parent.ID, baby.ID)
	s.ErrorIs(err, ErrNestingViolation)
	s.Nil(s.reload(parent.ID).ParentID)
	s.Nil(s.reload(baby.ID).ParentID)
}

func (s *RepositoryTestSuite) TestSetParent_RejectsSecondChildAndSecondParent() {
	parent := s.createOrg("Parent")
	child := s.createOrg("Child")
	other := s.createOrg("Other")
	otherParent := s.createOrg("Other Parent")

	s.Require().NoError(s.orgs.SetParent(child.ID, parent.ID))

	s.ErrorIs(s.orgs.SetParent(other.ID, parent.ID), ErrNestingViolation)
	s.ErrorIs(s.orgs.SetParent(child.ID, otherParent.ID), ErrNestingViolation)
	s.ErrorIs(s.orgs.SetParent(parent.ID, parent.ID), ErrNestingViolation)

	refreshedChild := s.reload(child.ID)
	s.Require().NotNil(refreshedChild.ParentID)
	s.Equal(parent.ID, *refreshedChild.ParentID)
	s.Nil(s.reload(other.ID).ParentID)
}

func (s *RepositoryTestSuite) TestSetParent_MissingOrganization() {
	org := s.createOrg("Lonely")
	s.ErrorIs(s.orgs.SetParent(org.ID, 9999), ErrOrganizationNotFound)
}

func (s *RepositoryTestSuite) TestCreateChild_RollsBackOnViolation() {
	parent := s.createOrg("Parent")
	existing := s.createOrg("Existing Child")
	s.Require().NoError(s.orgs.SetParent(existing.ID, parent.ID))

	child := &models.Organization{Name: "Second Child"}
	owner := &models.OrganizationMember{UserID: 7, Role: models.RoleOwner, Status: models.InviteStatusAccepted}
	err := s.orgs.CreateChild(parent.ID, child, owner)
	s.ErrorIs(err, ErrNestingViolation)

	var count int64
	s.Require().NoError(s.db.Model(&models.Organization{}).Where("name = ?", "Second Child").Count(&count).Error)
	s.Zero(count)
	s.Require().NoError(s.db.Model(&models.OrganizationMember{}).Where("user_id = ?", 7).Count(&count).Error)
	s.Zero(count)
}

func (s *RepositoryTestSuite) TestCreateChild_LinksAndAddsOwner() {
	parent := s.createOrg("Parent")

	child := &models.Organization{Name: "Child"}
	owner := &models.OrganizationMember{UserID: 3, Role: models.RoleOwner, Status: models.InviteStatusAccepted}
	s.Require().NoError(s.orgs.CreateChild(parent.ID, child, owner))

	s.Require().NotNil(child.ParentID)
	s.Equal(parent.ID, *child.ParentID)

	member, err := s.members.FindMember(child.ID, 3)
	s.Require().NoError(err)
	s.Equal(models.RoleOwner, member.Role)
	s.True(member.Organization.HasParent())
}

func (s *RepositoryTestSuite) TestDelete_CascadesExplicitly() {
	parent := s.createOrg("Parent")
	child := s.createOrg("Child")
	s.Require().NoError(s.orgs.SetParent(child.ID, parent.ID))
	s.addMember(parent.ID, 1, models.RoleOwner)
	s.Require().NoError(s.fields.Create(&models.ExportableField{ModelType: "FakeModel", Name: "x", OrganizationID: parent.ID}))

	s.Require().NoError(s.orgs.Delete(parent.ID))

	_, err := s.orgs.FindByID(parent.ID)
	s.ErrorIs(err, gorm.ErrRecordNotFound)
	s.Nil(s.reload(child.ID).ParentID)

	fields, err := s.fields.ListByOrganization(parent.ID)
	s.Require().NoError(err)
	s.Empty(fields)

	_, err = s.members.FindMember(parent.ID, 1)
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestClearParent() {
	parent := s.createOrg("Parent")
	child := s.createOrg("Child")
	s.Require().NoError(s.orgs.SetParent(child.ID, parent.ID))

	s.Require().NoError(s.orgs.ClearParent(child.ID))
	s.Nil(s.reload(child.ID).ParentID)

	// The parent slot is free again.
	s.NoError(s.orgs.SetParent(child.ID, parent.ID))
}

func (s *RepositoryTestSuite) TestUpdateQueryThreshold() {
	org := s.createOrg("Org")
	threshold := 12

	s.Require().NoError(s.orgs.UpdateQueryThreshold(org.ID, &threshold))
	s.Require().NotNil(s.reload(org.ID).QueryThreshold)
	s.Equal(12, *s.reload(org.ID).QueryThreshold)

	s.Require().NoError(s.orgs.UpdateQueryThreshold(org.ID, nil))
	s.Nil(s.reload(org.ID).QueryThreshold)
}

func (s *RepositoryTestSuite) TestListForUser_Paginates() {
	for i := 0; i < 3; i++ {
		org := s.createOrg("Org")
		s.addMember(org.ID, 42, models.RoleMember)
	}

	memberships, total, err := s.orgs.ListForUser(42, utils.PaginationParams{Page: 1, Limit: 2, Offset: 0})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(memberships, 2)
	s.Equal("Org", memberships[0].Organization.Name)
}

func (s *RepositoryTestSuite) TestGetOrCreate_Idempotent() {
	org := s.createOrg("Org")

	first, created, err := s.members.GetOrCreate(&models.OrganizationMember{
		OrganizationID: org.ID, UserID: 5, Role: models.RoleOwner, Status: models.InviteStatusAccepted, JoinedAt: time.Now(),
	})
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.members.GetOrCreate(&models.OrganizationMember{
		OrganizationID: org.ID, UserID: 5, Role: models.RoleViewer, JoinedAt: time.Now(),
	})
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.Role, second.Role)
	s.Equal(first.Status, second.Status)

	var count int64
	s.Require().NoError(s.db.Model(&models.OrganizationMember{}).Where("organization_id = ?", org.ID).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *RepositoryTestSuite) TestGetOrCreate_BareRowDefaults() {
	org := s.createOrg("Org")

	member, created, err := s.members.GetOrCreate(&models.OrganizationMember{OrganizationID: org.ID, UserID: 8})
	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.RoleViewer, member.Role)
	s.Equal(models.InviteStatusPending, member.Status)
}

func (s *RepositoryTestSuite) TestListMembers_OwnersFirst() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 3, models.RoleViewer)
	s.addMember(org.ID, 2, models.RoleOwner)
	s.addMember(org.ID, 1, models.RoleMember)

	members, err := s.members.ListMembers(org.ID)
	s.Require().NoError(err)
	s.Require().Len(members, 3)
	s.Equal(uint64(2), members[0].UserID)
	s.Equal(uint64(1), members[1].UserID)
	s.Equal(uint64(3), members[2].UserID)
}

func (s *RepositoryTestSuite) TestRemoveMember_PromotesSuccessor() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.addMember(org.ID, 4, models.RoleViewer)
	s.addMember(org.ID, 3, models.RoleMember)
	s.addMember(org.ID, 2, models.RoleMember)

	promoted, err := s.members.RemoveMember(org.ID, 1)
	s.Require().NoError(err)
	s.Require().NotNil(promoted)
	s.Equal(uint64(2), promoted.UserID)

	member, err := s.members.FindMember(org.ID, 2)
	s.Require().NoError(err)
	s.Equal(models.RoleOwner, member.Role)

	_, err = s.members.FindMember(org.ID, 1)
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestRemoveMember_NoPromotionWhenOwnerRemains() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.addMember(org.ID, 2, models.RoleOwner)
	s.addMember(org.ID, 3, models.RoleMember)

	promoted, err := s.members.RemoveMember(org.ID, 1)
	s.Require().NoError(err)
	s.Nil(promoted)

	member, err := s.members.FindMember(org.ID, 3)
	s.Require().NoError(err)
	s.Equal(models.RoleMember, member.Role)
}

func (s *RepositoryTestSuite) TestRemoveMember_LastMember() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)

	promoted, err := s.members.RemoveMember(org.ID, 1)
	s.Require().NoError(err)
	s.Nil(promoted)
}

func (s *RepositoryTestSuite) TestRemoveMember_IgnoresOtherOrganizations() {
	org := s.createOrg("Org")
	other := s.createOrg("Other")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.addMember(other.ID, 2, models.RoleMember)

	promoted, err := s.members.RemoveMember(org.ID, 1)
	s.Require().NoError(err)
	s.Nil(promoted)

	member, err := s.members.FindMember(other.ID, 2)
	s.Require().NoError(err)
	s.Equal(models.RoleMember, member.Role)
}

func (s *RepositoryTestSuite) TestRemoveMember_NotFound() {
	org := s.createOrg("Org")

	_, err := s.members.RemoveMember(org.ID, 99)
	s.ErrorIs(err, ErrMembershipNotFound)

	_, err = s.members.RemoveMember(9999, 1)
	s.ErrorIs(err, ErrMembershipNotFound)
}

func (s *RepositoryTestSuite) TestUpdateRole_SoleOwner() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.addMember(org.ID, 2, models.RoleMember)

	s.ErrorIs(s.members.UpdateRole(org.ID, 1, models.RoleMember), ErrSoleOwner)

	s.Require().NoError(s.members.UpdateRole(org.ID, 2, models.RoleOwner))
	s.Require().NoError(s.members.UpdateRole(org.ID, 1, models.RoleViewer))

	member, err := s.members.FindMember(org.ID, 1)
	s.Require().NoError(err)
	s.Equal(models.RoleViewer, member.Role)

	s.ErrorIs(s.members.UpdateRole(org.ID, 77, models.RoleViewer), ErrMembershipNotFound)
}

func (s *RepositoryTestSuite) invite(orgID, userID uint64, role models.Role, status models.InviteStatus) {
	_, _, err := s.members.GetOrCreate(&models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Status:         status,
		JoinedAt:       time.Now(),
	})
	s.Require().NoError(err)
}

func (s *RepositoryTestSuite) TestRemoveMember_UnacceptedOwnersDoNotCount() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.invite(org.ID, 2, models.RoleOwner, models.InviteStatusRejected)
	s.invite(org.ID, 4, models.RoleOwner, models.InviteStatusPending)
	s.addMember(org.ID, 3, models.RoleMember)

	promoted, err := s.members.RemoveMember(org.ID, 1)
	s.Require().NoError(err)
	s.Require().NotNil(promoted)
	s.Equal(uint64(3), promoted.UserID)

	member, err := s.members.FindMember(org.ID, 3)
	s.Require().NoError(err)
	s.Equal(models.RoleOwner, member.Role)
}

func (s *RepositoryTestSuite) TestRemoveMember_NeverPromotesUnaccepted() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.invite(org.ID, 2, models.RoleMember, models.InviteStatusPending)

	promoted, err := s.members.RemoveMember(org.ID, 1)
	s.Require().NoError(err)
	s.Nil(promoted)

	member, err := s.members.FindMember(org.ID, 2)
	s.Require().NoError(err)
	s.Equal(models.RoleMember, member.Role)
}

func (s *RepositoryTestSuite) TestUpdateRole_CountsAcceptedOwnersOnly() {
	org := s.createOrg("Org")
	s.addMember(org.ID, 1, models.RoleOwner)
	s.invite(org.ID, 2, models.RoleOwner, models.InviteStatusRejected)
	s.addMember(org.ID, 3, models.RoleViewer)

	s.ErrorIs(s.members.UpdateRole(org.ID, 1, models.RoleMember), ErrSoleOwner)

	// With only unaccepted rows left beside them, the owner may step down
	other := s.createOrg("Other")
	s.addMember(other.ID, 1, models.RoleOwner)
	s.invite(other.ID, 2, models.RoleViewer, models.InviteStatusPending)
	s.Require().NoError(s.members.UpdateRole(other.ID, 1, models.RoleMember))
}

func (s *RepositoryTestSuite) TestUpdateStatus() {
	org := s.createOrg("Org")
	_, _, err := s.members.GetOrCreate(&models.OrganizationMember{OrganizationID: org.ID, UserID: 9, Role: models.RoleMember})
	s.Require().NoError(err)

	s.Require().NoError(s.members.UpdateStatus(org.ID, 9, models.InviteStatusPending, models.InviteStatusAccepted))
	s.ErrorIs(s.members.UpdateStatus(org.ID, 9, models.InviteStatusPending, models.InviteStatusRejected), ErrStatusConflict)
	s.ErrorIs(s.members.UpdateStatus(org.ID, 10, models.InviteStatusPending, models.InviteStatusAccepted), ErrMembershipNotFound)
}

func (s *RepositoryTestSuite) TestExportableFields_UniquePerOrganization() {
	org := s.createOrg("Org")
	other := s.createOrg("Other")

	s.Require().NoError(s.fields.Create(&models.ExportableField{ModelType: "FakeModel", Name: "x", OrganizationID: org.ID}))
	s.ErrorIs(s.fields.Create(&models.ExportableField{ModelType: "FakeModel", Name: "x", OrganizationID: org.ID}), ErrDuplicateExportableField)

	// Same name under another model type or organization is fine.
	s.NoError(s.fields.Create(&models.ExportableField{ModelType: "OtherModel", Name: "x", OrganizationID: org.ID}))
	s.NoError(s.fields.Create(&models.ExportableField{ModelType: "FakeModel", Name: "x", OrganizationID: other.ID}))

	fields, err := s.fields.ListByOrganization(org.ID)
	s.Require().NoError(err)
	s.Len(fields, 2)
}

func (s *RepositoryTestSuite) TestExportableFields_Delete() {
	org := s.createOrg("Org")
	field := &models.ExportableField{ModelType: "FakeModel", Name: "x", OrganizationID: org.ID}
	s.Require().NoError(s.fields.Create(field))

	s.ErrorIs(s.fields.Delete(org.ID+1, field.ID), gorm.ErrRecordNotFound)
	s.Require().NoError(s.fields.Delete(org.ID, field.ID))
	s.ErrorIs(s.fields.Delete(org.ID, field.ID), gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestUsers() {
	user := &models.User{Username: "alice", PasswordHash: "hashed"}
	s.Require().NoError(s.users.Create(user))

	byID, err := s.users.FindByID(user.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)

	byName, err := s.users.FindByUsername("alice")
	s.Require().NoError(err)
	s.Equal(user.ID, byName.ID)

	_, err = s.users.FindByUsername("bob")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func newMockedPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestSetParent_LocksBothRowsAndRollsBack(t *testing.T) {
	db, mock := newMockedPostgres(t)
	repo := NewOrganizationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "organizations" WHERE id IN .* FOR UPDATE`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Big Daddy"))
	mock.ExpectRollback()

	err := repo.SetParent(1, 2)
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMember_PropagatesDriverError(t *testing.T) {
	db, mock := newMockedPostgres(t)
	repo := NewMemberRepository(db)

	driverErr := errors.New("connection reset by peer")
	mock.ExpectQuery(`SELECT \* FROM "organization_members"`).WillReturnError(driverErr)

	_, err := repo.FindMember(1, 2)
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportableFieldCreate_DuplicateRollsBack(t *testing.T) {
	db, mock := newMockedPostgres(t)
	repo := NewExportableFieldRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "exportable_fields"`).
		WithArgs("FakeModel", "x", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Create(&models.ExportableField{ModelType: "FakeModel", Name: "x", OrganizationID: 1})
	assert.ErrorIs(t, err, ErrDuplicateExportableField)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveMember_PromotionRollsBackWhenDeleteFails(t *testing.T) {
	db, mock := newMockedPostgres(t)
	repo := NewMemberRepository(db)

	deleteErr := errors.New("deadlock detected")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "organizations" WHERE id IN .* FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Big Daddy"))
	mock.ExpectQuery(`SELECT \* FROM "organization_members" WHERE organization_id = .* ORDER BY .*role_level DESC.* FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "user_id", "role_level", "status"}).
			AddRow(1, 1, 20, "accepted").
			AddRow(1, 2, 10, "accepted"))
	mock.ExpectExec(`UPDATE "organization_members" SET "role_level"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "organization_members"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(deleteErr)
	mock.ExpectRollback()

	promoted, err := repo.RemoveMember(1, 1)
	assert.ErrorIs(t, err, deleteErr)
	assert.Nil(t, promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
