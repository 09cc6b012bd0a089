package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/qrido/qrido-server/internal/db"
	"github.com/qrido/qrido-server/internal/loyalty"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/realtime"
	"github.com/qrido/qrido-server/internal/tier"
	"github.com/qrido/qrido-server/internal/util"
)

// CustomerHandler manages a company's enrolled customers.
type CustomerHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewCustomerHandler constructs a CustomerHandler.
func NewCustomerHandler(db *gorm.DB, hub *realtime.Hub) *CustomerHandler {
	return &CustomerHandler{db: db, hub: hub}
}

// customerListQuery defines query parameters for listing customers.
type customerListQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Search string `form:"search"`
}

// customerResponse defines one customer in list and detail responses.
type customerResponse struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	PointsBalance int64     `json:"points_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func toCustomerResponse(customer models.Customer) customerResponse {
	return customerResponse{
		ID:            customer.ID,
		Name:          customer.Name,
		Phone:         customer.Phone,
		Email:         customer.Email,
		PointsBalance: customer.PointsBalance,
		CreatedAt:     customer.CreatedAt,
	}
}

// List returns the company's customers, newest first.
func (h *CustomerHandler) List(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q customerListQuery
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
	query := h.db.WithContext(ctx).Model(&models.Customer{}).Where("company_id = ?", companyID)
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := dbpkg.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(
			dbpkg.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbpkg.CaseInsensitiveLikeExpr(h.db, "phone"),
			pattern, pattern,
		)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var customers []models.Customer
	if errFind := query.Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&customers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	items := make([]customerResponse, 0, len(customers))
	for _, customer := range customers {
		items = append(items, toCustomerResponse(customer))
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// Get returns one customer of the company.
func (h *CustomerHandler) Get(c *gin.Context) {
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

	var customer models.Customer
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", companyID).
		First(&customer, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

// customerCreateRequest defines the request body for enrolling a customer.
type customerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Create enrolls a customer, subject to the plan's customer cap.
func (h *CustomerHandler) Create(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body customerCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	phone := util.NormalizePhone(body.Phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = phone
	}

	var customer models.Customer
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.Customer{}).
			Where("company_id = ? AND phone = ?", companyID, phone).
			Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		if _, errReserve := tier.Reserve(c.Request.Context(), tx, companyID, tier.ResourceCustomers); errReserve != nil {
			return errReserve
		}
		customer = models.Customer{
			CompanyID: companyID,
			Name:      name,
			Phone:     phone,
			Email:     strings.TrimSpace(body.Email),
		}
		return tx.Create(&customer).Error
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusConflict, gin.H{"error": "phone already enrolled"})
		case errors.Is(errTx, tier.ErrLimitReached):
			c.JSON(http.StatusForbidden, gin.H{"error": "customer limit reached for current plan"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		}
		return
	}

	if h.hub != nil {
		h.hub.Publish(c.Request.Context(), realtime.Event{
			CompanyID: companyID,
			Kind:      realtime.KindCreated,
			Entity:    realtime.EntityCustomer,
			ID:        customer.ID,
		})
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

// customerUpdateRequest defines the request body for editing a customer.
type customerUpdateRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

// Update edits a customer's contact fields. The balance is never writable
// here; it only moves through ledger postings.
func (h *CustomerHandler) Update(c *gin.Context) {
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

	var body customerUpdateRequest
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
	if body.Phone != nil {
		phone := util.NormalizePhone(*body.Phone)
		if phone == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone"})
			return
		}
		var count int64
		if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Customer{}).
			Where("company_id = ? AND phone = ? AND id <> ?", companyID, phone, id).
			Count(&count).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "phone already enrolled"})
			return
		}
		updates["phone"] = phone
	}
	if body.Email != nil {
		updates["email"] = strings.TrimSpace(*body.Email)
	}
	if len(updates) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Customer{}).
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

	if h.hub != nil {
		h.hub.Publish(c.Request.Context(), realtime.Event{
			CompanyID: companyID,
			Kind:      realtime.KindUpdated,
			Entity:    realtime.EntityCustomer,
			ID:        id,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a customer together with nothing else; ledger rows stay
// for audit.
func (h *CustomerHandler) Delete(c *gin.Context) {
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
		Delete(&models.Customer{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.hub != nil {
		h.hub.Publish(c.Request.Context(), realtime.Event{
			CompanyID: companyID,
			Kind:      realtime.KindDeleted,
			Entity:    realtime.EntityCustomer,
			ID:        id,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// transactionListQuery defines query parameters for a customer's history.
type transactionListQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// Transactions returns a customer's ledger history, newest first.
func (h *CustomerHandler) Transactions(c *gin.Context) {
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

	var q transactionListQuery
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
	var customer models.Customer
	if errFind := h.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&customer, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	query := h.db.WithContext(ctx).Model(&models.LoyaltyTransaction{}).
		Where("company_id = ? AND customer_id = ?", companyID, id)

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var entries []models.LoyaltyTransaction
	if errFind := query.Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&entries).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type entryResponse struct {
		ID          uint64     `json:"id"`
		Type        string     `json:"type"`
		Points      int64      `json:"points"`
		Description string     `json:"description"`
		ExpiresAt   *time.Time `json:"expires_at,omitempty"`
		CreatedAt   time.Time  `json:"created_at"`
	}
	items := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entryResponse{
			ID:          entry.ID,
			Type:        entry.Type,
			Points:      entry.Points,
			Description: entry.Description,
			ExpiresAt:   entry.ExpiresAt,
			CreatedAt:   entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"customer": toCustomerResponse(customer),
		"items":    items,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

// earnRequest defines the request body for a direct point grant at the
// counter. Points are computed from the amount and the company rate.
type earnRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// Earn posts an earn entry for an over-the-counter sale without a request.
func (h *CustomerHandler) Earn(c *gin.Context) {
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

	var body earnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	ctx := c.Request.Context()
	var company models.Company
	if errFind := h.db.WithContext(ctx).First(&company, companyID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var customer models.Customer
	if errFind := h.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&customer, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	points := loyalty.EarnPoints(body.Amount, loyalty.Rate(company))
	if points <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount too small to earn points"})
		return
	}

	description := strings.TrimSpace(body.Description)
	if description == "" {
		description = fmt.Sprintf("counter sale %.2f", body.Amount)
	}

	entry, errPost := loyalty.PostEarn(ctx, h.db, companyID, customer.ID, points, nil, description)
	if errPost != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger post failed"})
		return
	}

	if h.hub != nil {
		h.hub.Publish(ctx, realtime.Event{
			CompanyID: companyID,
			Kind:      realtime.KindUpdated,
			Entity:    realtime.EntityCustomer,
			ID:        customer.ID,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": entry.ID,
		"points":         points,
		"expires_at":     entry.ExpiresAt,
	})
}

// ExportCSV streams the company's customers as a CSV download.
func (h *CustomerHandler) ExportCSV(c *gin.Context) {
	companyID := getCompanyID(c)
	if companyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var customers []models.Customer
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&customers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="customers.csv"`)
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"id", "name", "phone", "email", "points_balance", "created_at"})
	for _, customer := range customers {
		_ = writer.Write([]string{
			strconv.FormatUint(customer.ID, 10),
			customer.Name,
			customer.Phone,
			customer.Email,
			strconv.FormatInt(customer.PointsBalance, 10),
			customer.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
}
