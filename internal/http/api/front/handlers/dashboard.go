package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/tier"
)

// DashboardHandler serves panel KPI aggregates.
type DashboardHandler struct {
	db *gorm.DB
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// KPI returns the company's headline numbers.
func (h *DashboardHandler) KPI(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	var company models.Company
	if errFind := h.db.WithContext(ctx).First(&company, companyID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var customerCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Customer{}).
		Where("company_id = ?", companyID).
		Count(&customerCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var productCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Product{}).
		Where("company_id = ?", companyID).
		Count(&productCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var pendingRequests int64
	if errCount := h.db.WithContext(ctx).Model(&models.PurchaseRequest{}).
		Where("company_id = ? AND status = ?", companyID, models.RequestStatusPending).
		Count(&pendingRequests).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	var completedLast30 int64
	if errCount := h.db.WithContext(ctx).Model(&models.PurchaseRequest{}).
		Where("company_id = ? AND status = ? AND updated_at >= ?", companyID, models.RequestStatusCompleted, since).
		Count(&completedLast30).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type pointsRow struct {
		Earned   int64
		Redeemed int64
	}
	var points pointsRow
	if errScan := h.db.WithContext(ctx).Model(&models.LoyaltyTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN points ELSE 0 END), 0) AS earned, COALESCE(SUM(CASE WHEN type = ? THEN -points ELSE 0 END), 0) AS redeemed",
			models.TransactionEarn, models.TransactionRedeem).
		Where("company_id = ? AND created_at >= ?", companyID, since).
		Scan(&points).Error; errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	plan := company.EffectivePlan(now)
	customerLimit, _ := tier.Limit(plan, tier.ResourceCustomers)
	productLimit, _ := tier.Limit(plan, tier.ResourceProducts)

	c.JSON(http.StatusOK, gin.H{
		"plan":                    plan,
		"customers":               customerCount,
		"customer_limit":          customerLimit,
		"products":                productCount,
		"product_limit":           productLimit,
		"pending_requests":        pendingRequests,
		"completed_last_30_days":  completedLast30,
		"points_earned_last_30":   points.Earned,
		"points_redeemed_last_30": points.Redeemed,
	})
}
