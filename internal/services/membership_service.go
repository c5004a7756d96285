package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yukikurage/orgperms-api/internal/logging"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/repository"
	"gorm.io/gorm"
)

// MembershipService manages who belongs to an organization and with which role.
type MembershipService struct {
	memberRepo  repository.MemberRepository
	orgRepo     repository.OrganizationRepository
	userRepo    repository.UserRepository
	defaultRole models.Role
	logger      *slog.Logger
}

// NewMembershipService creates a new MembershipService. defaultRole is the
// role AddMember grants when the caller does not name one.
func NewMembershipService(
	memberRepo repository.MemberRepository,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	defaultRole models.Role,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		memberRepo:  memberRepo,
		orgRepo:     orgRepo,
		userRepo:    userRepo,
		defaultRole: defaultRole,
		logger:      logging.Resolve(logger),
	}
}

// AddMember adds userID to orgID as an accepted member. role may be nil to
// use the configured default. When the membership already exists it is
// returned unchanged.
func (s *MembershipService) AddMember(orgID, userID uint64, role *models.Role) (*models.OrganizationMember, error) {
	member, _, err := s.getOrCreate(orgID, userID, role, models.InviteStatusAccepted)
	return member, err
}

// InviteMember records a pending invitation for userID. An existing
// membership, pending or not, is returned unchanged with created false.
func (s *MembershipService) InviteMember(orgID, userID uint64, role *models.Role) (*models.OrganizationMember, bool, error) {
	return s.getOrCreate(orgID, userID, role, models.InviteStatusPending)
}

func (s *MembershipService) getOrCreate(orgID, userID uint64, role *models.Role, status models.InviteStatus) (*models.OrganizationMember, bool, error) {
	level := s.defaultRole
	if role != nil {
		level = *role
	}
	if !level.Valid() {
		return nil, false, ErrInvalidRole
	}

	if err := s.ensureOrganization(orgID); err != nil {
		return nil, false, err
	}
	if _, err := s.userRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}

	member, created, err := s.memberRepo.GetOrCreate(&models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           level,
		Status:         status,
		JoinedAt:       time.Now(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to add member: %w", err)
	}

	if created {
		s.logger.Info("membership created",
			"organization_id", orgID,
			"user_id", userID,
			"role", level.String(),
			"status", string(status),
		)
	}
	return member, created, nil
}

// RemoveMember deletes the membership. If the last owner leaves while others
// remain, the highest-ranking remaining member becomes owner in the same
// transaction and is returned.
func (s *MembershipService) RemoveMember(orgID, userID uint64) (*models.OrganizationMember, error) {
	promoted, err := s.memberRepo.RemoveMember(orgID, userID)
	if err != nil {
		if mapped := translateRepoError(err, ErrMembershipNotFound); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	s.logger.Info("membership removed", "organization_id", orgID, "user_id", userID)
	if promoted != nil {
		s.logger.Info("owner promoted",
			"organization_id", orgID,
			"user_id", promoted.UserID,
			"replaces", userID,
		)
	}
	return promoted, nil
}

// IsMember reports whether userID has any membership in orgID.
func (s *MembershipService) IsMember(orgID, userID uint64) (bool, error) {
	if _, err := s.memberRepo.FindMember(orgID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to find member: %w", err)
	}
	return true, nil
}

// GetMember returns one membership with its organization loaded.
func (s *MembershipService) GetMember(orgID, userID uint64) (*models.OrganizationMember, error) {
	member, err := s.memberRepo.FindMember(orgID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

// ListMembers lists an organization's members, owners first.
func (s *MembershipService) ListMembers(orgID uint64) ([]models.OrganizationMember, error) {
	if err := s.ensureOrganization(orgID); err != nil {
		return nil, err
	}

	members, err := s.memberRepo.ListMembers(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	return members, nil
}

// ChangeRole sets a member's role. The only owner cannot be demoted while
// other members remain.
func (s *MembershipService) ChangeRole(orgID, userID uint64, role models.Role) (*models.OrganizationMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := s.memberRepo.UpdateRole(orgID, userID, role); err != nil {
		if mapped := translateRepoError(err, ErrMembershipNotFound); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to change role: %w", err)
	}

	s.logger.Info("role changed", "organization_id", orgID, "user_id", userID, "role", role.String())
	return s.GetMember(orgID, userID)
}

// RespondToInvitation accepts or rejects a pending invitation.
func (s *MembershipService) RespondToInvitation(orgID, userID uint64, accept bool) (*models.OrganizationMember, error) {
	to := models.InviteStatusRejected
	if accept {
		to = models.InviteStatusAccepted
	}

	if err := s.memberRepo.UpdateStatus(orgID, userID, models.InviteStatusPending, to); err != nil {
		if mapped := translateRepoError(err, ErrMembershipNotFound); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}

	s.logger.Info("invitation answered", "organization_id", orgID, "user_id", userID, "status", string(to))
	return s.GetMember(orgID, userID)
}

func (s *MembershipService) ensureOrganization(orgID uint64) error {
	if _, err := s.orgRepo.FindByID(orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to find organization: %w", err)
	}
	return nil
}
