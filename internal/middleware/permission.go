package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/yukikurage/orgperms-api/internal/constants"
	apierrors "github.com/yukikurage/orgperms-api/internal/errors"
	"github.com/yukikurage/orgperms-api/internal/permissions"
	"github.com/yukikurage/orgperms-api/internal/services"
)

// Authorizer is the gate the permission middleware delegates to.
type Authorizer interface {
	Authorize(identity services.Identity, orgID uint64, capability string) (*services.Grant, error)
}

// OrganizationIDExtractor pulls the target organization from a request.
type OrganizationIDExtractor func(c *gin.Context) (uint64, error)

var errMissingOrganizationID = errors.New("organization_id is required")

// RequirePermission checks capability on the organization named by the
// request. See OrganizationIDFromRequest for where the ID is read from.
func RequirePermission(gate Authorizer, capability permissions.Capability) gin.HandlerFunc {
	return RequirePermissionOn(gate, capability, OrganizationIDFromRequest)
}

// RequirePermissionOn checks capability on the organization returned by
// extract. A missing or malformed ID is a 400 and the gate is not called.
func RequirePermissionOn(gate Authorizer, capability permissions.Capability, extract OrganizationIDExtractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		orgID, err := extract(c)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			c.Abort()
			return
		}

		grant, err := gate.Authorize(identity, orgID, string(capability))
		if err != nil {
			RespondAuthorizationError(c, err)
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyGrant, grant)
		c.Next()
	}
}

// RespondAuthorizationError writes the response for a failed gate decision.
func RespondAuthorizationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrOrganizationNotFound):
		apierrors.NotFound(c, "Organization not found")
	case errors.Is(err, services.ErrActorNotInOrganization):
		apierrors.ForbiddenWithCode(c, apierrors.ErrCodeNotInOrganization, "You are not a member of this organization")
	case errors.Is(err, services.ErrInsufficientPermission):
		apierrors.ForbiddenWithCode(c, apierrors.ErrCodeInsufficientPermissions, "You do not have permission to perform this action")
	default:
		apierrors.RespondWithError(c, http.StatusInternalServerError,
			apierrors.NewAPIError(apierrors.ErrCodeInternalError, "Failed to check permissions"))
	}
}

// GetGrant returns the grant stored by RequirePermission.
func GetGrant(c *gin.Context) (*services.Grant, bool) {
	value, exists := c.Get(constants.ContextKeyGrant)
	if !exists {
		return nil, false
	}
	grant, ok := value.(*services.Grant)
	return grant, ok
}

// OrganizationIDFromRequest reads the organization ID from the :id path
// parameter, else the organization_id query parameter on GET and DELETE,
// else the organization_id field of the JSON body. The body is cached so
// handlers can bind it again with ShouldBindBodyWith.
func OrganizationIDFromRequest(c *gin.Context) (uint64, error) {
	if raw := c.Param("id"); raw != "" {
		return parseOrganizationID(raw)
	}

	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
		return parseOrganizationID(c.Query("organization_id"))
	}

	return BodyUint64(c, "organization_id")
}

// BodyField returns an extractor reading a numeric field from the JSON body.
func BodyField(name string) OrganizationIDExtractor {
	return func(c *gin.Context) (uint64, error) {
		return BodyUint64(c, name)
	}
}

// BodyUint64 reads a positive integer field from the cached JSON body. The
// value is parsed from its literal text, so large IDs keep full precision.
func BodyUint64(c *gin.Context, name string) (uint64, error) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return 0, fmt.Errorf("%s is required", name)
	}

	raw, ok := body[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	if value == nil {
		return 0, fmt.Errorf("%s is required", name)
	}

	number, ok := value.(json.Number)
	if !ok {
		return 0, fmt.Errorf("invalid %s", name)
	}
	id, err := strconv.ParseUint(number.String(), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parseOrganizationID(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errMissingOrganizationID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid organization ID")
	}
	return id, nil
}
