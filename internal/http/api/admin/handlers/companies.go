package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/qrido/qrido-server/internal/db"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/realtime"
)

// CompanyHandler manages company accounts from the platform side.
type CompanyHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewCompanyHandler constructs a CompanyHandler.
func NewCompanyHandler(db *gorm.DB, hub *realtime.Hub) *CompanyHandler {
	return &CompanyHandler{db: db, hub: hub}
}

// companyListQuery defines query parameters for listing companies.
type companyListQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Search string `form:"search"`
	Plan   string `form:"plan"`
}

// companyResponse renders one company account.
func companyResponse(company models.Company, now time.Time) gin.H {
	return gin.H{
		"id":                  company.ID,
		"name":                company.Name,
		"slug":                company.Slug,
		"email":               company.Email,
		"phone":               company.Phone,
		"plan":                company.Plan,
		"effective_plan":      company.EffectivePlan(now),
		"partnership_ends_at": company.PartnershipEndsAt,
		"points_rate":         company.PointsRate,
		"active":              company.Active,
		"created_at":          company.CreatedAt,
		"updated_at":          company.UpdatedAt,
	}
}

// List returns company accounts with optional filters.
func (h *CompanyHandler) List(c *gin.Context) {
	var q companyListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Company{})
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "slug"),
			pattern, pattern,
		)
	}
	if plan := strings.TrimSpace(q.Plan); plan != "" {
		query = query.Where("plan = ?", plan)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var companies []models.Company
	if errFind := query.Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&companies).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	items := make([]gin.H, 0, len(companies))
	for _, company := range companies {
		items = append(items, companyResponse(company, now))
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// Get returns one company together with its usage counts.
func (h *CompanyHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var company models.Company
	if errFind := h.db.WithContext(ctx).First(&company, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var customerCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Customer{}).
		Where("company_id = ?", id).Count(&customerCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var productCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Product{}).
		Where("company_id = ?", id).Count(&productCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var requestCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.PurchaseRequest{}).
		Where("company_id = ?", id).Count(&requestCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	resp := companyResponse(company, time.Now().UTC())
	resp["customer_count"] = customerCount
	resp["product_count"] = productCount
	resp["request_count"] = requestCount
	c.JSON(http.StatusOK, resp)
}

// updateCompanyRequest defines the request body for company updates.
type updateCompanyRequest struct {
	Name              *string    `json:"name"`
	Plan              *string    `json:"plan"`
	PartnershipEndsAt *time.Time `json:"partnership_ends_at"`
	ClearPartnership  bool       `json:"clear_partnership"`
	PointsRate        *float64   `json:"points_rate"`
	Active            *bool      `json:"active"`
}

// validPlans guards which plan names the update accepts.
var validPlans = map[string]struct{}{
	models.PlanBasic:       {},
	models.PlanPro:         {},
	models.PlanMaster:      {},
	models.PlanPartnership: {},
}

// Update modifies a company's plan, rate, or status.
func (h *CompanyHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateCompanyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Plan != nil {
		plan := strings.ToLower(strings.TrimSpace(*body.Plan))
		if _, known := validPlans[plan]; !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
			return
		}
		if plan == models.PlanPartnership && body.PartnershipEndsAt == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "partnership plan needs partnership_ends_at"})
			return
		}
		updates["plan"] = plan
	}
	if body.ClearPartnership {
		updates["partnership_ends_at"] = nil
	} else if body.PartnershipEndsAt != nil {
		updates["partnership_ends_at"] = *body.PartnershipEndsAt
	}
	if body.PointsRate != nil {
		if *body.PointsRate <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points_rate must be positive"})
			return
		}
		updates["points_rate"] = *body.PointsRate
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Company{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.hub != nil {
		h.hub.Publish(c.Request.Context(), realtime.Event{
			CompanyID: id,
			Kind:      realtime.KindUpdated,
			Entity:    realtime.EntityCompany,
			ID:        id,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a company together with its dependent rows.
func (h *CompanyHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var company models.Company
		if errFind := tx.First(&company, id).Error; errFind != nil {
			return errFind
		}
		for _, model := range []any{
			&models.VerificationCode{},
			&models.LoyaltyTransaction{},
			&models.PurchaseRequest{},
			&models.Reward{},
			&models.Product{},
			&models.Customer{},
			&models.User{},
		} {
			if errDelete := tx.Where("company_id = ?", id).Delete(model).Error; errDelete != nil {
				return errDelete
			}
		}
		return tx.Delete(&models.Company{}, id).Error
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
