package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/models"
)

// RewardHandler manages a company's reward catalog.
type RewardHandler struct {
	db *gorm.DB
}

// NewRewardHandler constructs a RewardHandler.
func NewRewardHandler(db *gorm.DB) *RewardHandler {
	return &RewardHandler{db: db}
}

// rewardResponse defines one reward in responses.
type rewardResponse struct {
	ID             uint64     `json:"id"`
	Title          string     `json:"title"`
	PointsRequired int64      `json:"points_required"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Active         bool       `json:"active"`
	Redeemable     bool       `json:"redeemable"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toRewardResponse(reward models.Reward, now time.Time) rewardResponse {
	return rewardResponse{
		ID:             reward.ID,
		Title:          reward.Title,
		PointsRequired: reward.PointsRequired,
		ExpiresAt:      reward.ExpiresAt,
		Active:         reward.Active,
		Redeemable:     reward.Redeemable(now),
		CreatedAt:      reward.CreatedAt,
	}
}

// List returns the company's rewards.
func (h *RewardHandler) List(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rewards []models.Reward
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&rewards).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	items := make([]rewardResponse, 0, len(rewards))
	for _, reward := range rewards {
		items = append(items, toRewardResponse(reward, now))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// rewardCreateRequest defines the request body for adding a reward.
type rewardCreateRequest struct {
	Title          string     `json:"title"`
	PointsRequired int64      `json:"points_required"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// Create adds a reward.
func (h *RewardHandler) Create(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body rewardCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if body.PointsRequired <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points_required must be positive"})
		return
	}

	reward := models.Reward{
		CompanyID:      companyID,
		Title:          title,
		PointsRequired: body.PointsRequired,
		ExpiresAt:      body.ExpiresAt,
		Active:         true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&reward).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, toRewardResponse(reward, time.Now().UTC()))
}

// rewardUpdateRequest defines the request body for editing a reward.
type rewardUpdateRequest struct {
	Title          *string    `json:"title"`
	PointsRequired *int64     `json:"points_required"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiry    bool       `json:"clear_expiry"`
	Active         *bool      `json:"active"`
}

// Update edits a reward.
func (h *RewardHandler) Update(c *gin.Context) {
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

	var body rewardUpdateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		updates["title"] = title
	}
	if body.PointsRequired != nil {
		if *body.PointsRequired <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points_required must be positive"})
			return
		}
		updates["points_required"] = *body.PointsRequired
	}
	if body.ClearExpiry {
		updates["expires_at"] = nil
	} else if body.ExpiresAt != nil {
		updates["expires_at"] = *body.ExpiresAt
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Reward{}).
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

// Delete removes a reward.
func (h *RewardHandler) Delete(c *gin.Context) {
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
		Delete(&models.Reward{})
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
