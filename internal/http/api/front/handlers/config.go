package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qrido/qrido-server/internal/settings"
)

// GetPublicConfig returns UI-facing configuration. No auth required.
func GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"site_name":                settings.StringValue(settings.SiteNameKey, settings.DefaultSiteName),
		"points_per_currency":      settings.FloatValue(settings.PointsPerCurrencyKey, settings.DefaultPointsPerCurrency),
		"points_expiry_months":     settings.IntValue(settings.PointsExpiryMonthsKey, settings.DefaultPointsExpiryMonths),
		"verification_ttl_seconds": settings.IntValue(settings.VerificationCodeTTLSecondsKey, settings.DefaultVerificationCodeTTLSeconds),
	})
}
