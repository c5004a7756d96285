package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/middleware"
	"github.com/yukikurage/orgperms-api/internal/permissions"
)

// Router groups what RegisterRoutes needs.
type Router struct {
	Auth          *AuthHandler
	Organizations *OrganizationHandler
	Members       *MemberHandler
	Permissions   *PermissionHandler
	Authenticator middleware.Authenticator
	Gate          middleware.Authorizer
}

// RegisterRoutes mounts the API under /api. Session middleware must already
// be installed on r.
func (rt *Router) RegisterRoutes(r gin.IRouter) {
	requireAuth := middleware.RequireAuth(rt.Authenticator)
	can := func(capability permissions.Capability) gin.HandlerFunc {
		return middleware.RequirePermission(rt.Gate, capability)
	}

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", rt.Auth.Signup)
			auth.POST("/login", rt.Auth.Login)
			auth.POST("/token", rt.Auth.Token)
			auth.POST("/logout", rt.Auth.Logout)
			auth.GET("/me", requireAuth, rt.Auth.GetCurrentUser)
		}

		perms := api.Group("/permissions")
		perms.Use(requireAuth)
		{
			perms.GET("/capabilities", rt.Permissions.ListCapabilities)
			perms.POST("/check", rt.Permissions.Check)
		}

		// Organization routes (protected)
		orgs := api.Group("/organizations")
		orgs.Use(requireAuth)
		{
			orgs.POST("", rt.Organizations.CreateOrganization)
			orgs.GET("", rt.Organizations.ListOrganizations)
			orgs.GET("/:id", can(permissions.CanViewData), rt.Organizations.GetOrganization)
			orgs.PUT("/:id", can(permissions.IsOwner), rt.Organizations.UpdateOrganization)
			orgs.DELETE("/:id", can(permissions.CanRemoveOrg), rt.Organizations.DeleteOrganization)

			orgs.GET("/:id/settings", can(permissions.CanViewData), rt.Organizations.GetSettings)
			orgs.PUT("/:id/query-threshold", can(permissions.CanModifyQueryThreshold), rt.Organizations.UpdateQueryThreshold)
			orgs.GET("/:id/exportable-fields", can(permissions.CanViewData), rt.Organizations.ListExportableFields)
			orgs.POST("/:id/exportable-fields", can(permissions.IsParentOrgOwner), rt.Organizations.AddExportableField)
			orgs.DELETE("/:id/exportable-fields/:field_id", can(permissions.IsParentOrgOwner), rt.Organizations.RemoveExportableField)

			// Nesting
			orgs.POST("/:id/children", can(permissions.CanCreateSubOrg), rt.Organizations.CreateChild)
			orgs.GET("/:id/child", can(permissions.CanViewSubOrgSettings), rt.Organizations.GetChild)
			orgs.GET("/:id/child/exportable-fields", can(permissions.CanViewSubOrgFields), rt.Organizations.GetChildExportableFields)
			orgs.PUT("/:id/parent",
				can(permissions.IsOwner),
				middleware.RequirePermissionOn(rt.Gate, permissions.CanCreateSubOrg, middleware.BodyField("parent_id")),
				rt.Organizations.SetParent,
			)
			orgs.DELETE("/:id/parent", rt.Organizations.RemoveParent)

			// Members
			orgs.GET("/:id/members", can(permissions.CanViewData), rt.Members.ListMembers)
			orgs.POST("/:id/members", can(permissions.CanInviteMember), rt.Members.AddMember)
			orgs.POST("/:id/invitations", can(permissions.CanInviteMember), rt.Members.InviteMember)
			orgs.PUT("/:id/members/:user_id", can(permissions.IsOwner), rt.Members.ChangeRole)
			orgs.DELETE("/:id/members/:user_id", can(permissions.CanRemoveMember), rt.Members.RemoveMember)
			orgs.POST("/:id/invitation/accept", rt.Members.AcceptInvitation)
			orgs.POST("/:id/invitation/reject", rt.Members.RejectInvitation)
		}
	}
}
