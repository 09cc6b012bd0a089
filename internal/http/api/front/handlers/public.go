package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/loyalty"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/purchase"
	"github.com/qrido/qrido-server/internal/tier"
	"github.com/qrido/qrido-server/internal/util"
)

// PublicHandler serves the customer-facing endpoints reached through a
// company's QR link. No login; the slug scopes everything to one company.
type PublicHandler struct {
	db  *gorm.DB
	svc *purchase.Service
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(db *gorm.DB, svc *purchase.Service) *PublicHandler {
	return &PublicHandler{db: db, svc: svc}
}

// findCompanyBySlug loads an active company by its slug.
func (h *PublicHandler) findCompanyBySlug(c *gin.Context) (*models.Company, bool) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing company"})
		return nil, false
	}
	var company models.Company
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("slug = ? AND active = ?", slug, true).
		First(&company).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &company, true
}

// Catalog returns the company's active products and redeemable rewards.
func (h *PublicHandler) Catalog(c *gin.Context) {
	company, ok := h.findCompanyBySlug(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var products []models.Product
	if errFind := h.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", company.ID, true).
		Order("name ASC").
		Find(&products).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var rewards []models.Reward
	if errFind := h.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", company.ID, true).
		Order("points_required ASC").
		Find(&rewards).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	productItems := make([]productResponse, 0, len(products))
	for _, product := range products {
		productItems = append(productItems, toProductResponse(product))
	}
	rewardItems := make([]rewardResponse, 0, len(rewards))
	for _, reward := range rewards {
		if !reward.Redeemable(now) {
			continue
		}
		rewardItems = append(rewardItems, toRewardResponse(reward, now))
	}

	c.JSON(http.StatusOK, gin.H{
		"company": gin.H{
			"name": company.Name,
			"slug": company.Slug,
		},
		"products": productItems,
		"rewards":  rewardItems,
	})
}

// publicSubmitRequest defines the request body for a customer submission.
type publicSubmitRequest struct {
	Type  string                `json:"type"`
	Items []purchase.SubmitItem `json:"items"`
	Name  string                `json:"name"`
	Phone string                `json:"phone"`
	Email string                `json:"email"`
}

// Submit files a purchase or redeem request against the company.
func (h *PublicHandler) Submit(c *gin.Context) {
	company, ok := h.findCompanyBySlug(c)
	if !ok {
		return
	}

	var body publicSubmitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	request, errSubmit := h.svc.Submit(c.Request.Context(), purchase.SubmitParams{
		CompanyID:     company.ID,
		Type:          strings.TrimSpace(body.Type),
		Items:         body.Items,
		CustomerName:  body.Name,
		CustomerPhone: body.Phone,
		CustomerEmail: body.Email,
	})
	if errSubmit != nil {
		respondSubmitError(c, errSubmit)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_id":    request.PublicID,
		"type":         request.Type,
		"status":       request.Status,
		"total_amount": request.TotalAmount,
		"total_points": request.TotalPoints,
	})
}

// Status returns the workflow state of a submitted request by its public
// UUID, so customers can watch for the verification step.
func (h *PublicHandler) Status(c *gin.Context) {
	company, ok := h.findCompanyBySlug(c)
	if !ok {
		return
	}
	publicID := strings.TrimSpace(c.Param("public_id"))
	if publicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing public_id"})
		return
	}

	var request models.PurchaseRequest
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("company_id = ? AND public_id = ?", company.ID, publicID).
		First(&request).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_id":    request.PublicID,
		"type":         request.Type,
		"status":       request.Status,
		"total_amount": request.TotalAmount,
		"total_points": request.TotalPoints,
		"updated_at":   request.UpdatedAt,
	})
}

// Balance returns an enrolled customer's point balance by phone.
func (h *PublicHandler) Balance(c *gin.Context) {
	company, ok := h.findCompanyBySlug(c)
	if !ok {
		return
	}
	phone := util.NormalizePhone(c.Query("phone"))
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	var customer models.Customer
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("company_id = ? AND phone = ?", company.ID, phone).
		First(&customer).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not enrolled"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":           customer.Name,
		"phone":          util.MaskPhone(customer.Phone),
		"points_balance": customer.PointsBalance,
	})
}

// respondSubmitError maps submission errors to HTTP responses.
func respondSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, purchase.ErrEmptyItems),
		errors.Is(err, purchase.ErrRedeemSingleReward):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, purchase.ErrProductUnavailable),
		errors.Is(err, purchase.ErrRewardUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, loyalty.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient points balance"})
	case errors.Is(err, tier.ErrLimitReached):
		c.JSON(http.StatusForbidden, gin.H{"error": "the business cannot enroll more customers on its current plan"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "submit failed"})
	}
}
