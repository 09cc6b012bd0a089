package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/settings"
)

// SettingsHandler manages platform-wide settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the effective platform settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"site_name":                     settings.StringValue(settings.SiteNameKey, settings.DefaultSiteName),
		"points_per_currency":           settings.FloatValue(settings.PointsPerCurrencyKey, settings.DefaultPointsPerCurrency),
		"points_expiry_months":          settings.IntValue(settings.PointsExpiryMonthsKey, settings.DefaultPointsExpiryMonths),
		"verification_code_ttl_seconds": settings.IntValue(settings.VerificationCodeTTLSecondsKey, settings.DefaultVerificationCodeTTLSeconds),
	})
}

// updateSettingsRequest defines the request body for settings updates. All
// fields are optional; absent ones keep their stored value.
type updateSettingsRequest struct {
	SiteName                   *string  `json:"site_name"`
	PointsPerCurrency          *float64 `json:"points_per_currency"`
	PointsExpiryMonths         *int     `json:"points_expiry_months"`
	VerificationCodeTTLSeconds *int     `json:"verification_code_ttl_seconds"`
}

// Update stores the submitted settings and refreshes the snapshot.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	pending := map[string]any{}
	if body.SiteName != nil {
		if *body.SiteName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_name cannot be empty"})
			return
		}
		pending[settings.SiteNameKey] = *body.SiteName
	}
	if body.PointsPerCurrency != nil {
		if *body.PointsPerCurrency <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points_per_currency must be positive"})
			return
		}
		pending[settings.PointsPerCurrencyKey] = *body.PointsPerCurrency
	}
	if body.PointsExpiryMonths != nil {
		if *body.PointsExpiryMonths <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points_expiry_months must be positive"})
			return
		}
		pending[settings.PointsExpiryMonthsKey] = *body.PointsExpiryMonths
	}
	if body.VerificationCodeTTLSeconds != nil {
		if *body.VerificationCodeTTLSeconds <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "verification_code_ttl_seconds must be positive"})
			return
		}
		pending[settings.VerificationCodeTTLSecondsKey] = *body.VerificationCodeTTLSeconds
	}
	if len(pending) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	ctx := c.Request.Context()
	for key, value := range pending {
		encoded, errEncode := json.Marshal(value)
		if errEncode != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
			return
		}
		if errUpsert := settings.Upsert(ctx, h.db, key, encoded); errUpsert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
