package tier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	dbpkg "github.com/qrido/qrido-server/internal/db"
	"github.com/qrido/qrido-server/internal/models"
	"gorm.io/gorm"
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

func createCompany(t *testing.T, conn *gorm.DB, plan string) models.Company {
	t.Helper()
	company := models.Company{Name: "Cafe", Slug: fmt.Sprintf("cafe-%d", time.Now().UnixNano()), Plan: plan, Active: true}
	if errCreate := conn.Create(&company).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}
	return company
}

func TestLimitKnownPlans(t *testing.T) {
	cases := []struct {
		plan     string
		resource string
		want     int64
	}{
		{models.PlanBasic, ResourceCustomers, 10},
		{models.PlanBasic, ResourceProducts, 10},
		{models.PlanPro, ResourceCustomers, 100},
		{models.PlanMaster, ResourceProducts, 1000},
		{models.PlanPartnership, ResourceCustomers, Unlimited},
	}
	for _, tc := range cases {
		got, errLimit := Limit(tc.plan, tc.resource)
		if errLimit != nil {
			t.Fatalf("limit %s/%s: %v", tc.plan, tc.resource, errLimit)
		}
		if got != tc.want {
			t.Fatalf("limit %s/%s: expected %d, got %d", tc.plan, tc.resource, tc.want, got)
		}
	}
}

func TestCheckDeniesAtBasicCap(t *testing.T) {
	conn := openTestDB(t)
	company := createCompany(t, conn, models.PlanBasic)

	for i := 0; i < 10; i++ {
		customer := models.Customer{CompanyID: company.ID, Name: fmt.Sprintf("c%d", i), Phone: fmt.Sprintf("+3556900%04d", i)}
		if errCreate := conn.Create(&customer).Error; errCreate != nil {
			t.Fatalf("create customer: %v", errCreate)
		}
	}

	result, errCheck := Check(context.Background(), conn, company, ResourceCustomers)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if result.Allowed {
		t.Fatalf("expected denial at cap, got allowed (count=%d limit=%d)", result.Count, result.Limit)
	}
}

func TestCheckAllowsBelowCap(t *testing.T) {
	conn := openTestDB(t)
	company := createCompany(t, conn, models.PlanBasic)

	customer := models.Customer{CompanyID: company.ID, Name: "c", Phone: "+35569000001"}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}

	result, errCheck := Check(context.Background(), conn, company, ResourceCustomers)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed below cap, got denial")
	}
}

func TestReserveStopsEleventhCustomer(t *testing.T) {
	conn := openTestDB(t)
	company := createCompany(t, conn, models.PlanBasic)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		errTx := conn.Transaction(func(tx *gorm.DB) error {
			if _, errReserve := Reserve(ctx, tx, company.ID, ResourceCustomers); errReserve != nil {
				return errReserve
			}
			customer := models.Customer{CompanyID: company.ID, Name: fmt.Sprintf("c%d", i), Phone: fmt.Sprintf("+3556911%04d", i)}
			return tx.Create(&customer).Error
		})
		if errTx != nil {
			t.Fatalf("reserve %d: %v", i, errTx)
		}
	}

	errTx := conn.Transaction(func(tx *gorm.DB) error {
		_, errReserve := Reserve(ctx, tx, company.ID, ResourceCustomers)
		return errReserve
	})
	if !errors.Is(errTx, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached for the 11th customer, got %v", errTx)
	}
}

func TestExpiredPartnershipCountsAsBasic(t *testing.T) {
	conn := openTestDB(t)
	company := createCompany(t, conn, models.PlanPartnership)
	ended := time.Now().UTC().Add(-24 * time.Hour)
	if errUpdate := conn.Model(&models.Company{}).Where("id = ?", company.ID).
		Update("partnership_ends_at", ended).Error; errUpdate != nil {
		t.Fatalf("set end date: %v", errUpdate)
	}
	if errFind := conn.First(&company, company.ID).Error; errFind != nil {
		t.Fatalf("reload company: %v", errFind)
	}

	for i := 0; i < 10; i++ {
		customer := models.Customer{CompanyID: company.ID, Name: fmt.Sprintf("c%d", i), Phone: fmt.Sprintf("+3556922%04d", i)}
		if errCreate := conn.Create(&customer).Error; errCreate != nil {
			t.Fatalf("create customer: %v", errCreate)
		}
	}

	result, errCheck := Check(context.Background(), conn, company, ResourceCustomers)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if result.Allowed {
		t.Fatalf("expected lapsed partnership to enforce the basic cap")
	}
	if result.Plan != models.PlanBasic {
		t.Fatalf("expected effective plan basic, got %s", result.Plan)
	}
}
