package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/config"
	"github.com/qrido/qrido-server/internal/http/api/front/handlers"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/purchase"
	"github.com/qrido/qrido-server/internal/realtime"
	"github.com/qrido/qrido-server/internal/security"
)

// RegisterFrontRoutes registers public, customer-facing, and authenticated
// panel routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, hub *realtime.Hub) {
	if r == nil || db == nil {
		return
	}

	svc := purchase.NewService(db, hub)

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)
	front.POST("/login/prepare", authHandler.LoginPrepare)
	front.POST("/login/totp", authHandler.LoginTOTP)
	front.POST("/reset-password", authHandler.ResetPassword)
	front.GET("/config", handlers.GetPublicConfig)

	// Customer-facing endpoints reached through a company QR link.
	publicHandler := handlers.NewPublicHandler(db, svc)
	public := r.Group("/v0/public/:slug")
	public.GET("/catalog", publicHandler.Catalog)
	public.POST("/requests", publicHandler.Submit)
	public.GET("/requests/:public_id", publicHandler.Status)
	public.GET("/balance", publicHandler.Balance)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile/password", profileHandler.ChangePassword)
	authed.PUT("/company", profileHandler.UpdateCompany)

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	customerHandler := handlers.NewCustomerHandler(db, hub)
	authed.GET("/customers", customerHandler.List)
	authed.GET("/customers/export", customerHandler.ExportCSV)
	authed.GET("/customers/:id", customerHandler.Get)
	authed.POST("/customers", customerHandler.Create)
	authed.PUT("/customers/:id", customerHandler.Update)
	authed.DELETE("/customers/:id", customerHandler.Delete)
	authed.GET("/customers/:id/transactions", customerHandler.Transactions)
	authed.POST("/customers/:id/earn", customerHandler.Earn)

	productHandler := handlers.NewProductHandler(db)
	authed.GET("/products", productHandler.List)
	authed.POST("/products", productHandler.Create)
	authed.PUT("/products/:id", productHandler.Update)
	authed.DELETE("/products/:id", productHandler.Delete)

	rewardHandler := handlers.NewRewardHandler(db)
	authed.GET("/rewards", rewardHandler.List)
	authed.POST("/rewards", rewardHandler.Create)
	authed.PUT("/rewards/:id", rewardHandler.Update)
	authed.DELETE("/rewards/:id", rewardHandler.Delete)

	requestHandler := handlers.NewRequestHandler(db, svc)
	authed.GET("/requests", requestHandler.List)
	authed.GET("/requests/:id", requestHandler.Get)
	authed.POST("/requests/:id/confirm", requestHandler.Confirm)
	authed.POST("/requests/:id/reject", requestHandler.Reject)
	authed.POST("/requests/:id/complete", requestHandler.Complete)
	authed.POST("/requests/:id/complete-direct", requestHandler.CompleteDirect)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/kpi", dashboardHandler.KPI)

	if hub != nil {
		authed.GET("/events", func(c *gin.Context) {
			val, exists := c.Get("companyID")
			companyID, _ := val.(uint64)
			if !exists || companyID == 0 {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			hub.ServeWS(c.Writer, c.Request, companyID)
		})
	}
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Websocket clients cannot set headers; accept the token as a
			// query parameter there.
			if token := strings.TrimSpace(c.Query("token")); token != "" {
				authHeader = "Bearer " + token
			}
		}
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

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled || !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}
		if user.CompanyID == nil || *user.CompanyID == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no company"})
			return
		}

		var company models.Company
		if errFind := db.WithContext(c.Request.Context()).First(&company, *user.CompanyID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "company not found"})
			return
		}
		if !company.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "company disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("companyID", company.ID)
		c.Next()
	}
}
