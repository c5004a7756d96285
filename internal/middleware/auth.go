package middleware

import (
	"errors"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/constants"
	apierrors "github.com/yukikurage/orgperms-api/internal/errors"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/services"
)

// Authenticator resolves bearer tokens and users.
type Authenticator interface {
	ParseToken(token string) (*services.TokenClaims, error)
	GetUser(id uint64) (*models.User, error)
}

// RequireAuth authenticates the caller by bearer token or, failing that,
// by session. The user is reloaded on every request so the super-user flag
// always reflects storage.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := credentialUserID(c, auth)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		user, err := auth.GetUser(userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				apierrors.Unauthorized(c, "")
			} else {
				apierrors.InternalError(c, "")
			}
			c.Abort()
			return
		}

		// Store user ID in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, user.ID)
		c.Set(constants.ContextKeyIsSuperuser, user.IsSuperuser)
		c.Next()
	}
}

func credentialUserID(c *gin.Context, auth Authenticator) (uint64, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			return 0, false
		}
		claims, err := auth.ParseToken(token)
		if err != nil {
			return 0, false
		}
		return claims.UserID(), true
	}

	session := sessions.Default(c)
	return toUint64(session.Get(constants.ContextKeyUserID))
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUint64(userID)
}

// GetIdentity returns the authenticated caller as the gate sees it.
func GetIdentity(c *gin.Context) (services.Identity, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		return services.Identity{}, false
	}
	return services.Identity{
		UserID:       userID,
		IsSuperActor: c.GetBool(constants.ContextKeyIsSuperuser),
	}, true
}

func toUint64(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, v != 0
	case uint:
		return uint64(v), v != 0
	case int:
		if v <= 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v <= 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
