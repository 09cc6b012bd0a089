package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/config"
	"github.com/qrido/qrido-server/internal/http/api/admin/handlers"
	"github.com/qrido/qrido-server/internal/http/api/admin/permissions"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/realtime"
	"github.com/qrido/qrido-server/internal/security"
)

// RegisterAdminRoutes registers the platform administration routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, hub *realtime.Hub) {
	if r == nil || db == nil {
		return
	}

	admin := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	admin.POST("/login", authHandler.Login)
	admin.POST("/login/totp", authHandler.LoginTOTP)

	authed := admin.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	adminHandler := handlers.NewAdminHandler(db)
	superOnly := authed.Group("", requireSuperAdmin())
	superOnly.GET("/admins", adminHandler.List)
	superOnly.GET("/admins/:id", adminHandler.Get)
	superOnly.POST("/admins", adminHandler.Create)
	superOnly.PUT("/admins/:id", adminHandler.Update)
	superOnly.DELETE("/admins/:id", adminHandler.Delete)
	superOnly.PUT("/admins/:id/password", adminHandler.ChangePassword)

	companyHandler := handlers.NewCompanyHandler(db, hub)
	companyRoutes := authed.Group("", requirePermission(permissions.PermissionCompanies))
	companyRoutes.GET("/companies", companyHandler.List)
	companyRoutes.GET("/companies/:id", companyHandler.Get)
	companyRoutes.PUT("/companies/:id", companyHandler.Update)
	companyRoutes.DELETE("/companies/:id", companyHandler.Delete)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/kpi", requirePermission(permissions.PermissionDashboard), dashboardHandler.KPI)

	settingsHandler := handlers.NewSettingsHandler(db)
	settingsRoutes := authed.Group("", requirePermission(permissions.PermissionSettings))
	settingsRoutes.GET("/settings", settingsHandler.Get)
	settingsRoutes.PUT("/settings", settingsHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminIsSuper", admin.IsSuperAdmin)
		c.Set("adminPermissions", admin.Permissions)
		c.Next()
	}
}

// requireSuperAdmin restricts a route group to super admins.
func requireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSuper, _ := c.Get("adminIsSuper"); isSuper != true {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "super admin only"})
			return
		}
		c.Next()
	}
}

// requirePermission restricts a route to admins holding the key. Super
// admins pass implicitly.
func requirePermission(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSuper, _ := c.Get("adminIsSuper"); isSuper == true {
			c.Next()
			return
		}
		raw, _ := c.Get("adminPermissions")
		granted, ok := raw.(datatypes.JSON)
		if !ok || !permissions.Has(granted, key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
