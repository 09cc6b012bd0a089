package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/tier"
)

// ProductHandler manages a company's product catalog.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// productResponse defines one product in responses.
type productResponse struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	PointsReward int64     `json:"points_reward"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:           product.ID,
		Name:         product.Name,
		Price:        product.Price,
		PointsReward: product.PointsReward,
		Active:       product.Active,
		CreatedAt:    product.CreatedAt,
	}
}

// List returns the company's products.
func (h *ProductHandler) List(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var products []models.Product
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&products).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// productCreateRequest defines the request body for adding a product.
type productCreateRequest struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	PointsReward int64   `json:"points_reward"`
}

// Create adds a product, subject to the plan's product cap.
func (h *ProductHandler) Create(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body productCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.Price < 0 || body.PointsReward < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and points_reward must not be negative"})
		return
	}

	var product models.Product
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if _, errReserve := tier.Reserve(c.Request.Context(), tx, companyID, tier.ResourceProducts); errReserve != nil {
			return errReserve
		}
		product = models.Product{
			CompanyID:    companyID,
			Name:         name,
			Price:        body.Price,
			PointsReward: body.PointsReward,
			Active:       true,
		}
		return tx.Create(&product).Error
	})
	if errTx != nil {
		if errors.Is(errTx, tier.ErrLimitReached) {
			c.JSON(http.StatusForbidden, gin.H{"error": "product limit reached for current plan"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	c.JSON(http.StatusOK, toProductResponse(product))
}

// productUpdateRequest defines the request body for editing a product.
type productUpdateRequest struct {
	Name         *string  `json:"name"`
	Price        *float64 `json:"price"`
	PointsReward *int64   `json:"points_reward"`
	Active       *bool    `json:"active"`
}

// Update edits a product.
func (h *ProductHandler) Update(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body productUpdateRequest
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
	if body.Price != nil {
		if *body.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
			return
		}
		updates["price"] = *body.Price
	}
	if body.PointsReward != nil {
		if *body.PointsReward < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points_reward must not be negative"})
			return
		}
		updates["points_reward"] = *body.PointsReward
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Product{}).
		Where("id = ? AND company_id = ?", id, companyID).
		Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a product. Completed requests keep their snapshot of it
// inside the items JSON.
func (h *ProductHandler) Delete(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND company_id = ?", id, companyID).
		Delete(&models.Product{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
