package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yukikurage/orgperms-api/internal/logging"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/permissions"
	"github.com/yukikurage/orgperms-api/internal/repository"
	"gorm.io/gorm"
)

// Decision outcomes reported to the DecisionRecorder.
const (
	OutcomeAllow          = "allow"
	OutcomeBypass         = "bypass"
	OutcomeOrgNotFound    = "org_not_found"
	OutcomeNotInOrg       = "not_in_org"
	OutcomeDenied         = "denied"
	OutcomeError          = "error"
	unknownCapabilityName = "unknown"
)

// Identity is the caller as established by authentication.
type Identity struct {
	UserID       uint64
	IsSuperActor bool
}

// Grant is what a successful authorization hands to the action it guards.
// Membership is nil when the super-user bypass was used.
type Grant struct {
	OrganizationID uint64
	Capability     string
	Membership     *models.OrganizationMember
	Bypassed       bool
}

// DecisionRecorder receives one call per authorization decision.
type DecisionRecorder interface {
	RecordDecision(capability, outcome string)
}

// Gate decides whether an identity holds a capability in an organization.
// Every call reads current state from storage.
type Gate struct {
	orgRepo        repository.OrganizationRepository
	memberRepo     repository.MemberRepository
	allowSuperUser bool
	recorder       DecisionRecorder
	logger         *slog.Logger
}

// NewGate creates a Gate. recorder may be nil.
func NewGate(
	orgRepo repository.OrganizationRepository,
	memberRepo repository.MemberRepository,
	allowSuperUser bool,
	recorder DecisionRecorder,
	logger *slog.Logger,
) *Gate {
	return &Gate{
		orgRepo:        orgRepo,
		memberRepo:     memberRepo,
		allowSuperUser: allowSuperUser,
		recorder:       recorder,
		logger:         logging.Resolve(logger),
	}
}

// Authorize resolves the organization, then the caller's membership, then
// evaluates capability against it. Only accepted memberships count; a
// pending or rejected invitee is treated as outside the organization. The organization lookup always runs
// first, so a missing organization is reported before anything about the
// caller. Super actors skip the membership and capability steps when the
// gate allows it.
func (g *Gate) Authorize(identity Identity, orgID uint64, capability string) (*Grant, error) {
	if _, err := g.orgRepo.FindByID(orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			g.decide(identity, orgID, capability, OutcomeOrgNotFound)
			return nil, ErrOrganizationNotFound
		}
		g.decide(identity, orgID, capability, OutcomeError)
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}

	if identity.IsSuperActor && g.allowSuperUser {
		g.decide(identity, orgID, capability, OutcomeBypass)
		return &Grant{OrganizationID: orgID, Capability: capability, Bypassed: true}, nil
	}

	member, err := g.memberRepo.FindMember(orgID, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			g.decide(identity, orgID, capability, OutcomeNotInOrg)
			return nil, ErrActorNotInOrganization
		}
		g.decide(identity, orgID, capability, OutcomeError)
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}
	if !member.IsAccepted() {
		g.decide(identity, orgID, capability, OutcomeNotInOrg)
		return nil, ErrActorNotInOrganization
	}

	if !permissions.Evaluate(capability, member) {
		g.decide(identity, orgID, capability, OutcomeDenied)
		return nil, ErrInsufficientPermission
	}

	g.decide(identity, orgID, capability, OutcomeAllow)
	return &Grant{OrganizationID: orgID, Capability: capability, Membership: member}, nil
}

func (g *Gate) decide(identity Identity, orgID uint64, capability, outcome string) {
	level := slog.LevelDebug
	switch outcome {
	case OutcomeBypass:
		level = slog.LevelInfo
	case OutcomeError:
		level = slog.LevelError
	}
	g.logger.Log(context.Background(), level, "authorization decision",
		"user_id", identity.UserID,
		"organization_id", orgID,
		"capability", capability,
		"outcome", outcome,
	)

	if g.recorder == nil {
		return
	}
	label := capability
	if !permissions.Known(capability) {
		label = unknownCapabilityName
	}
	g.recorder.RecordDecision(label, outcome)
}
