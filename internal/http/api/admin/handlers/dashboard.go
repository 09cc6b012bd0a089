package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/models"
)

// DashboardHandler serves platform-wide aggregates.
type DashboardHandler struct {
	db *gorm.DB
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// KPI returns platform-level headline numbers.
func (h *DashboardHandler) KPI(c *gin.Context) {
	ctx := c.Request.Context()

	var companyCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Company{}).Count(&companyCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var activeCompanies int64
	if errCount := h.db.WithContext(ctx).Model(&models.Company{}).
		Where("active = ?", true).
		Count(&activeCompanies).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var customerCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Customer{}).Count(&customerCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var requestCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.PurchaseRequest{}).Count(&requestCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type planRow struct {
		Plan  string
		Count int64
	}
	var plans []planRow
	if errScan := h.db.WithContext(ctx).Model(&models.Company{}).
		Select("plan, COUNT(*) AS count").
		Group("plan").
		Scan(&plans).Error; errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	planCounts := gin.H{}
	for _, row := range plans {
		planCounts[row.Plan] = row.Count
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	var completedLast30 int64
	if errCount := h.db.WithContext(ctx).Model(&models.PurchaseRequest{}).
		Where("status = ? AND updated_at >= ?", models.RequestStatusCompleted, since).
		Count(&completedLast30).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"companies":              companyCount,
		"active_companies":       activeCompanies,
		"customers":              customerCount,
		"requests":               requestCount,
		"completed_last_30_days": completedLast30,
		"companies_by_plan":      planCounts,
	})
}
