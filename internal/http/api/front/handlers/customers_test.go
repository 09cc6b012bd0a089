package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/qrido/qrido-server/internal/db"
	"github.com/qrido/qrido-server/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func createTestCompany(t *testing.T, conn *gorm.DB, plan string) models.Company {
	t.Helper()
	company := models.Company{
		Name:       "Cafe",
		Slug:       fmt.Sprintf("cafe-%d", time.Now().UnixNano()),
		Plan:       plan,
		PointsRate: 1,
		Active:     true,
	}
	if errCreate := conn.Create(&company).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}
	return company
}

func newJSONContext(t *testing.T, companyID uint64, method string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req, errReq := http.NewRequest(method, "/", &buf)
	if errReq != nil {
		t.Fatalf("new request: %v", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set("companyID", companyID)
	return c, recorder
}

func TestCustomerCreateEnrolls(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	c, recorder := newJSONContext(t, company.ID, http.MethodPost, gin.H{
		"name":  "Alma",
		"phone": "069 200 0001",
	})
	handler.Create(c)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		ID    uint64 `json:"id"`
		Phone string `json:"phone"`
	}
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.ID == 0 {
		t.Fatalf("expected an ID")
	}
	if resp.Phone != "0692000001" {
		t.Fatalf("expected normalized phone, got %q", resp.Phone)
	}
}

func TestCustomerCreateRejectsDuplicatePhone(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	existing := models.Customer{CompanyID: company.ID, Name: "Alma", Phone: "0692000001"}
	if errCreate := conn.Create(&existing).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}

	c, recorder := newJSONContext(t, company.ID, http.MethodPost, gin.H{
		"name":  "Other",
		"phone": "069 200 0001",
	})
	handler.Create(c)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestCustomerCreateStopsAtPlanCap(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	for i := 0; i < 10; i++ {
		customer := models.Customer{CompanyID: company.ID, Name: fmt.Sprintf("c%d", i), Phone: fmt.Sprintf("+3556944%04d", i)}
		if errCreate := conn.Create(&customer).Error; errCreate != nil {
			t.Fatalf("create customer: %v", errCreate)
		}
	}

	c, recorder := newJSONContext(t, company.ID, http.MethodPost, gin.H{
		"name":  "Eleven",
		"phone": "+35569999999",
	})
	handler.Create(c)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 at plan cap, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestCustomerUpdateNeverTouchesBalance(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	customer := models.Customer{CompanyID: company.ID, Name: "Alma", Phone: "0692000001", PointsBalance: 75}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}

	c, recorder := newJSONContext(t, company.ID, http.MethodPut, gin.H{
		"name":           "Alma B",
		"points_balance": 9999,
	})
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", customer.ID)}}
	handler.Update(c)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var reloaded models.Customer
	if errFind := conn.First(&reloaded, customer.ID).Error; errFind != nil {
		t.Fatalf("reload customer: %v", errFind)
	}
	if reloaded.Name != "Alma B" {
		t.Fatalf("expected updated name, got %q", reloaded.Name)
	}
	if reloaded.PointsBalance != 75 {
		t.Fatalf("balance must only move through the ledger, got %d", reloaded.PointsBalance)
	}
}

func TestCustomerGetScopedToCompany(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	other := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	customer := models.Customer{CompanyID: other.ID, Name: "Alien", Phone: "0692000009"}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}

	c, recorder := newJSONContext(t, company.ID, http.MethodGet, nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", customer.ID)}}
	handler.Get(c)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 across companies, got %d", recorder.Code)
	}
}

func TestCustomerEarnPostsLedger(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	customer := models.Customer{CompanyID: company.ID, Name: "Alma", Phone: "0692000001"}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}

	c, recorder := newJSONContext(t, company.ID, http.MethodPost, gin.H{"amount": 42.9})
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", customer.ID)}}
	handler.Earn(c)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Points int64 `json:"points"`
	}
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Points != 42 {
		t.Fatalf("expected 42 points at rate 1, got %d", resp.Points)
	}

	var reloaded models.Customer
	if errFind := conn.First(&reloaded, customer.ID).Error; errFind != nil {
		t.Fatalf("reload customer: %v", errFind)
	}
	if reloaded.PointsBalance != 42 {
		t.Fatalf("expected balance 42, got %d", reloaded.PointsBalance)
	}
}

func TestCustomerEarnRejectsNonPositiveAmount(t *testing.T) {
	conn := openTestDB(t)
	company := createTestCompany(t, conn, models.PlanBasic)
	handler := NewCustomerHandler(conn, nil)

	customer := models.Customer{CompanyID: company.ID, Name: "Alma", Phone: "0692000001"}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}

	c, recorder := newJSONContext(t, company.ID, http.MethodPost, gin.H{"amount": -5})
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", customer.ID)}}
	handler.Earn(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}
