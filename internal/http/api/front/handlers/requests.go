package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/loyalty"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/purchase"
	"github.com/qrido/qrido-server/internal/verification"
)

// RequestHandler drives the company side of the purchase request workflow.
type RequestHandler struct {
	db  *gorm.DB
	svc *purchase.Service
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(db *gorm.DB, svc *purchase.Service) *RequestHandler {
	return &RequestHandler{db: db, svc: svc}
}

// requestListQuery defines query parameters for listing requests.
type requestListQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Status string `form:"status"`
	Type   string `form:"type"`
}

// requestResponse defines one purchase request in responses.
type requestResponse struct {
	ID          uint64               `json:"id"`
	PublicID    string               `json:"public_id"`
	Type        string               `json:"type"`
	Status      string               `json:"status"`
	Items       []models.RequestItem `json:"items"`
	TotalAmount float64              `json:"total_amount"`
	TotalPoints int64                `json:"total_points"`
	Customer    *customerResponse    `json:"customer,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toRequestResponse(request models.PurchaseRequest) requestResponse {
	var items []models.RequestItem
	_ = json.Unmarshal(request.Items, &items)
	resp := requestResponse{
		ID:          request.ID,
		PublicID:    request.PublicID,
		Type:        request.Type,
		Status:      request.Status,
		Items:       items,
		TotalAmount: request.TotalAmount,
		TotalPoints: request.TotalPoints,
		CreatedAt:   request.CreatedAt,
		UpdatedAt:   request.UpdatedAt,
	}
	if request.Customer != nil {
		customer := toCustomerResponse(*request.Customer)
		resp.Customer = &customer
	}
	return resp
}

// List returns the company's requests, newest first.
func (h *RequestHandler) List(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q requestListQuery
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

	ctx := c.Request.Context()
	query := h.db.WithContext(ctx).Model(&models.PurchaseRequest{}).Where("company_id = ?", companyID)
	if status := strings.TrimSpace(q.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if requestType := strings.TrimSpace(q.Type); requestType != "" {
		query = query.Where("type = ?", requestType)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var requests []models.PurchaseRequest
	if errFind := query.Preload("Customer").
		Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&requests).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	items := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, toRequestResponse(request))
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// Get returns one request of the company.
func (h *RequestHandler) Get(c *gin.Context) {
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

	var request models.PurchaseRequest
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Customer").
		Where("company_id = ?", companyID).
		First(&request, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(request))
}

// Confirm accepts a pending request and returns the verification code for
// the customer to read back at pickup.
func (h *RequestHandler) Confirm(c *gin.Context) {
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

	request, code, errConfirm := h.svc.Confirm(c.Request.Context(), companyID, id)
	if errConfirm != nil {
		respondWorkflowError(c, errConfirm)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request":         toRequestResponse(*request),
		"code":            code.Code,
		"code_expires_at": code.ExpiresAt,
	})
}

// Reject declines a pending request.
func (h *RequestHandler) Reject(c *gin.Context) {
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

	request, errReject := h.svc.Reject(c.Request.Context(), companyID, id)
	if errReject != nil {
		respondWorkflowError(c, errReject)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(*request))
}

// completeRequest defines the request body for code-checked completion.
type completeRequest struct {
	Code string `json:"code"`
}

// Complete finishes a confirmed request after checking the code the
// customer presents. The ledger posting happens in the same transaction.
func (h *RequestHandler) Complete(c *gin.Context) {
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

	var body completeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	request, errComplete := h.svc.Complete(c.Request.Context(), companyID, id, body.Code)
	if errComplete != nil {
		respondWorkflowError(c, errComplete)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(*request))
}

// CompleteDirect finishes a pending request in one step, for customers
// standing at the counter.
func (h *RequestHandler) CompleteDirect(c *gin.Context) {
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

	request, errComplete := h.svc.CompleteDirect(c.Request.Context(), companyID, id)
	if errComplete != nil {
		respondWorkflowError(c, errComplete)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(*request))
}

// respondWorkflowError maps workflow errors to HTTP responses.
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, purchase.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, verification.ErrCodeInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid or expired code"})
	case errors.Is(err, loyalty.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient points balance"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
