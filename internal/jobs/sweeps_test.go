package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

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

func seedLedgerCustomer(t *testing.T, conn *gorm.DB, balance int64) (models.Company, models.Customer) {
	t.Helper()
	company := models.Company{Name: "Cafe", Slug: fmt.Sprintf("cafe-%d", time.Now().UnixNano()), Plan: models.PlanBasic, Active: true}
	if errCreate := conn.Create(&company).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}
	customer := models.Customer{CompanyID: company.ID, Name: "Alma", Phone: "+35569000001", PointsBalance: balance}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}
	return company, customer
}

func TestExpirePointsPostsCompensatingEntry(t *testing.T) {
	conn := openTestDB(t)
	company, customer := seedLedgerCustomer(t, conn, 100)

	lapsed := time.Now().UTC().Add(-time.Hour)
	earn := models.LoyaltyTransaction{
		CompanyID:  company.ID,
		CustomerID: customer.ID,
		Type:       models.TransactionEarn,
		Points:     100,
		ExpiresAt:  &lapsed,
	}
	if errCreate := conn.Create(&earn).Error; errCreate != nil {
		t.Fatalf("create earn: %v", errCreate)
	}

	expired, errSweep := ExpirePoints(context.Background(), conn, nil)
	if errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired entry, got %d", expired)
	}

	var reloaded models.Customer
	if errFind := conn.First(&reloaded, customer.ID).Error; errFind != nil {
		t.Fatalf("reload customer: %v", errFind)
	}
	if reloaded.PointsBalance != 0 {
		t.Fatalf("expected balance 0, got %d", reloaded.PointsBalance)
	}

	var entry models.LoyaltyTransaction
	if errFind := conn.Where("type = ?", models.TransactionExpire).First(&entry).Error; errFind != nil {
		t.Fatalf("load expire entry: %v", errFind)
	}
	if entry.Points != -100 {
		t.Fatalf("expected -100, got %d", entry.Points)
	}
}

func TestExpirePointsClampsAtBalance(t *testing.T) {
	conn := openTestDB(t)
	company, customer := seedLedgerCustomer(t, conn, 30)

	lapsed := time.Now().UTC().Add(-time.Hour)
	earn := models.LoyaltyTransaction{
		CompanyID:  company.ID,
		CustomerID: customer.ID,
		Type:       models.TransactionEarn,
		Points:     100,
		ExpiresAt:  &lapsed,
	}
	if errCreate := conn.Create(&earn).Error; errCreate != nil {
		t.Fatalf("create earn: %v", errCreate)
	}

	if _, errSweep := ExpirePoints(context.Background(), conn, nil); errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}

	var reloaded models.Customer
	if errFind := conn.First(&reloaded, customer.ID).Error; errFind != nil {
		t.Fatalf("reload customer: %v", errFind)
	}
	if reloaded.PointsBalance != 0 {
		t.Fatalf("expected balance clamped to 0, got %d", reloaded.PointsBalance)
	}

	var entry models.LoyaltyTransaction
	if errFind := conn.Where("type = ?", models.TransactionExpire).First(&entry).Error; errFind != nil {
		t.Fatalf("load expire entry: %v", errFind)
	}
	if entry.Points != -30 {
		t.Fatalf("expected deduction clamped to -30, got %d", entry.Points)
	}
}

func TestExpirePointsIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	company, customer := seedLedgerCustomer(t, conn, 100)

	lapsed := time.Now().UTC().Add(-time.Hour)
	earn := models.LoyaltyTransaction{
		CompanyID:  company.ID,
		CustomerID: customer.ID,
		Type:       models.TransactionEarn,
		Points:     100,
		ExpiresAt:  &lapsed,
	}
	if errCreate := conn.Create(&earn).Error; errCreate != nil {
		t.Fatalf("create earn: %v", errCreate)
	}

	if _, errSweep := ExpirePoints(context.Background(), conn, nil); errSweep != nil {
		t.Fatalf("first sweep: %v", errSweep)
	}
	expired, errSweep := ExpirePoints(context.Background(), conn, nil)
	if errSweep != nil {
		t.Fatalf("second sweep: %v", errSweep)
	}
	if expired != 0 {
		t.Fatalf("expected nothing to expire twice, got %d", expired)
	}
}

func TestDowngradePartnershipsSwitchesLapsedPlans(t *testing.T) {
	conn := openTestDB(t)

	ended := time.Now().UTC().Add(-time.Hour)
	lapsed := models.Company{Name: "Lapsed", Slug: fmt.Sprintf("lapsed-%d", time.Now().UnixNano()), Plan: models.PlanPartnership, PartnershipEndsAt: &ended, Active: true}
	if errCreate := conn.Create(&lapsed).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}
	future := time.Now().UTC().Add(24 * time.Hour)
	live := models.Company{Name: "Live", Slug: fmt.Sprintf("live-%d", time.Now().UnixNano()), Plan: models.PlanPartnership, PartnershipEndsAt: &future, Active: true}
	if errCreate := conn.Create(&live).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}

	downgraded, errSweep := DowngradePartnerships(context.Background(), conn, nil)
	if errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	if downgraded != 1 {
		t.Fatalf("expected 1 downgrade, got %d", downgraded)
	}

	var reloadedLapsed, reloadedLive models.Company
	if errFind := conn.First(&reloadedLapsed, lapsed.ID).Error; errFind != nil {
		t.Fatalf("reload lapsed: %v", errFind)
	}
	if reloadedLapsed.Plan != models.PlanBasic {
		t.Fatalf("expected basic after downgrade, got %s", reloadedLapsed.Plan)
	}
	if errFind := conn.First(&reloadedLive, live.ID).Error; errFind != nil {
		t.Fatalf("reload live: %v", errFind)
	}
	if reloadedLive.Plan != models.PlanPartnership {
		t.Fatalf("expected live partnership untouched, got %s", reloadedLive.Plan)
	}
}
