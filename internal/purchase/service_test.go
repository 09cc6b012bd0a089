package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/qrido/qrido-server/internal/db"
	"github.com/qrido/qrido-server/internal/loyalty"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/tier"
	"github.com/qrido/qrido-server/internal/verification"
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

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	company  models.Company
	customer models.Customer
	product  models.Product
	reward   models.Reward
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := openTestDB(t)

	company := models.Company{Name: "Cafe", Slug: fmt.Sprintf("cafe-%d", time.Now().UnixNano()), Plan: models.PlanPro, PointsRate: 1, Active: true}
	if errCreate := conn.Create(&company).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}
	customer := models.Customer{CompanyID: company.ID, Name: "Alma", Phone: "+35569000001"}
	if errCreate := conn.Create(&customer).Error; errCreate != nil {
		t.Fatalf("create customer: %v", errCreate)
	}
	product := models.Product{CompanyID: company.ID, Name: "espresso", Price: 10, PointsReward: 5, Active: true}
	if errCreate := conn.Create(&product).Error; errCreate != nil {
		t.Fatalf("create product: %v", errCreate)
	}
	reward := models.Reward{CompanyID: company.ID, Title: "free drink", PointsRequired: 50, Active: true}
	if errCreate := conn.Create(&reward).Error; errCreate != nil {
		t.Fatalf("create reward: %v", errCreate)
	}

	return &fixture{
		conn:     conn,
		svc:      NewService(conn, nil),
		company:  company,
		customer: customer,
		product:  product,
		reward:   reward,
	}
}

func (f *fixture) submitPurchase(t *testing.T, qty int) *models.PurchaseRequest {
	t.Helper()
	request, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypePurchase,
		Items:         []SubmitItem{{ID: f.product.ID, Qty: qty}},
		CustomerPhone: f.customer.Phone,
	})
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	return request
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	var reloaded models.Customer
	if errFind := f.conn.First(&reloaded, f.customer.ID).Error; errFind != nil {
		t.Fatalf("reload customer: %v", errFind)
	}
	return reloaded.PointsBalance
}

func TestSubmitResolvesItemsFromCatalog(t *testing.T) {
	f := newFixture(t)

	request, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypePurchase,
		Items:         []SubmitItem{{ID: f.product.ID, Qty: 2}},
		CustomerPhone: f.customer.Phone,
	})
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	if request.Status != models.RequestStatusPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if request.PublicID == "" {
		t.Fatalf("expected a public ID")
	}
	if request.TotalAmount != 20 {
		t.Fatalf("expected amount 20, got %v", request.TotalAmount)
	}
	if request.TotalPoints != 10 {
		t.Fatalf("expected points 10, got %d", request.TotalPoints)
	}

	var items []models.RequestItem
	if errDecode := json.Unmarshal(request.Items, &items); errDecode != nil {
		t.Fatalf("decode items: %v", errDecode)
	}
	if len(items) != 1 || items[0].Name != "espresso" || items[0].Price != 10 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestSubmitEnrollsUnknownCustomer(t *testing.T) {
	f := newFixture(t)

	request, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypePurchase,
		Items:         []SubmitItem{{ID: f.product.ID, Qty: 1}},
		CustomerName:  "Blerta",
		CustomerPhone: "069 200 0002",
	})
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	var enrolled models.Customer
	if errFind := f.conn.First(&enrolled, request.CustomerID).Error; errFind != nil {
		t.Fatalf("load enrolled customer: %v", errFind)
	}
	if enrolled.Name != "Blerta" {
		t.Fatalf("expected enrolled name Blerta, got %q", enrolled.Name)
	}
	if enrolled.ID == f.customer.ID {
		t.Fatalf("expected a new customer row")
	}
}

func TestSubmitRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	if errUpdate := f.conn.Model(&models.Product{}).Where("id = ?", f.product.ID).
		Update("active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate product: %v", errUpdate)
	}

	_, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypePurchase,
		Items:         []SubmitItem{{ID: f.product.ID, Qty: 1}},
		CustomerPhone: f.customer.Phone,
	})
	if !errors.Is(errSubmit, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", errSubmit)
	}
}

func TestSubmitRedeemChecksBalance(t *testing.T) {
	f := newFixture(t)

	_, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypeRedeem,
		Items:         []SubmitItem{{ID: f.reward.ID, Qty: 1}},
		CustomerPhone: f.customer.Phone,
	})
	if !errors.Is(errSubmit, loyalty.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", errSubmit)
	}
}

func TestSubmitRedeemTakesSingleReward(t *testing.T) {
	f := newFixture(t)

	_, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypeRedeem,
		Items:         []SubmitItem{{ID: f.reward.ID, Qty: 1}, {ID: f.reward.ID, Qty: 1}},
		CustomerPhone: f.customer.Phone,
	})
	if !errors.Is(errSubmit, ErrRedeemSingleReward) {
		t.Fatalf("expected ErrRedeemSingleReward, got %v", errSubmit)
	}
}

func TestSubmitStopsAtCustomerCap(t *testing.T) {
	f := newFixture(t)
	if errUpdate := f.conn.Model(&models.Company{}).Where("id = ?", f.company.ID).
		Update("plan", models.PlanBasic).Error; errUpdate != nil {
		t.Fatalf("set plan: %v", errUpdate)
	}
	for i := 0; i < 9; i++ {
		extra := models.Customer{CompanyID: f.company.ID, Name: fmt.Sprintf("c%d", i), Phone: fmt.Sprintf("+3556933%04d", i)}
		if errCreate := f.conn.Create(&extra).Error; errCreate != nil {
			t.Fatalf("create customer: %v", errCreate)
		}
	}

	_, errSubmit := f.svc.Submit(context.Background(), SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypePurchase,
		Items:         []SubmitItem{{ID: f.product.ID, Qty: 1}},
		CustomerPhone: "+35569999999",
	})
	if !errors.Is(errSubmit, tier.ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", errSubmit)
	}
}

func TestConfirmIssuesCode(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 1)

	confirmed, code, errConfirm := f.svc.Confirm(context.Background(), f.company.ID, request.ID)
	if errConfirm != nil {
		t.Fatalf("confirm: %v", errConfirm)
	}
	if confirmed.Status != models.RequestStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if code == nil || len(code.Code) != 4 {
		t.Fatalf("expected a 4-digit code, got %+v", code)
	}
}

func TestCompletePostsEarnLedger(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 2)
	ctx := context.Background()

	_, code, errConfirm := f.svc.Confirm(ctx, f.company.ID, request.ID)
	if errConfirm != nil {
		t.Fatalf("confirm: %v", errConfirm)
	}

	completed, errComplete := f.svc.Complete(ctx, f.company.ID, request.ID, code.Code)
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if completed.Status != models.RequestStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if got := f.balance(t); got != 10 {
		t.Fatalf("expected balance 10, got %d", got)
	}

	var entry models.LoyaltyTransaction
	if errFind := f.conn.Where("purchase_request_id = ?", request.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("load ledger entry: %v", errFind)
	}
	if entry.Type != models.TransactionEarn || entry.Points != 10 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
}

func TestCompleteRejectsWrongCodeWithoutLedgerEffect(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 1)
	ctx := context.Background()

	_, code, errConfirm := f.svc.Confirm(ctx, f.company.ID, request.ID)
	if errConfirm != nil {
		t.Fatalf("confirm: %v", errConfirm)
	}

	wrong := "1234"
	if wrong == code.Code {
		wrong = "4321"
	}
	_, errComplete := f.svc.Complete(ctx, f.company.ID, request.ID, wrong)
	if !errors.Is(errComplete, verification.ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", errComplete)
	}

	if got := f.balance(t); got != 0 {
		t.Fatalf("expected balance untouched at 0, got %d", got)
	}
	var reloaded models.PurchaseRequest
	if errFind := f.conn.First(&reloaded, request.ID).Error; errFind != nil {
		t.Fatalf("reload request: %v", errFind)
	}
	if reloaded.Status != models.RequestStatusConfirmed {
		t.Fatalf("expected status to stay confirmed, got %s", reloaded.Status)
	}
}

func TestCompleteDirectFromPending(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 1)

	completed, errComplete := f.svc.CompleteDirect(context.Background(), f.company.ID, request.ID)
	if errComplete != nil {
		t.Fatalf("complete direct: %v", errComplete)
	}
	if completed.Status != models.RequestStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if got := f.balance(t); got != 5 {
		t.Fatalf("expected balance 5, got %d", got)
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 1)
	ctx := context.Background()

	if _, errComplete := f.svc.CompleteDirect(ctx, f.company.ID, request.ID); errComplete != nil {
		t.Fatalf("complete direct: %v", errComplete)
	}

	if _, errAgain := f.svc.CompleteDirect(ctx, f.company.ID, request.ID); !errors.Is(errAgain, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on repeat completion, got %v", errAgain)
	}
	if _, errReject := f.svc.Reject(ctx, f.company.ID, request.ID); !errors.Is(errReject, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on rejecting completed, got %v", errReject)
	}
	if got := f.balance(t); got != 5 {
		t.Fatalf("expected balance posted once, got %d", got)
	}
}

func TestRejectFromPending(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 1)

	rejected, errReject := f.svc.Reject(context.Background(), f.company.ID, request.ID)
	if errReject != nil {
		t.Fatalf("reject: %v", errReject)
	}
	if rejected.Status != models.RequestStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if got := f.balance(t); got != 0 {
		t.Fatalf("expected no ledger effect, got balance %d", got)
	}
}

func TestRedeemCompletionDebitsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, errPost := loyalty.PostEarn(ctx, f.conn, f.company.ID, f.customer.ID, 60, nil, "seed"); errPost != nil {
		t.Fatalf("seed balance: %v", errPost)
	}

	request, errSubmit := f.svc.Submit(ctx, SubmitParams{
		CompanyID:     f.company.ID,
		Type:          models.RequestTypeRedeem,
		Items:         []SubmitItem{{ID: f.reward.ID, Qty: 1}},
		CustomerPhone: f.customer.Phone,
	})
	if errSubmit != nil {
		t.Fatalf("submit redeem: %v", errSubmit)
	}
	if request.TotalAmount != 0 {
		t.Fatalf("expected zero amount on redeem, got %v", request.TotalAmount)
	}

	if _, errComplete := f.svc.CompleteDirect(ctx, f.company.ID, request.ID); errComplete != nil {
		t.Fatalf("complete redeem: %v", errComplete)
	}
	if got := f.balance(t); got != 10 {
		t.Fatalf("expected balance 10 after redeem, got %d", got)
	}
}

func TestCompleteScopedToCompany(t *testing.T) {
	f := newFixture(t)
	request := f.submitPurchase(t, 1)

	other := models.Company{Name: "Other", Slug: fmt.Sprintf("other-%d", time.Now().UnixNano()), Plan: models.PlanBasic, Active: true}
	if errCreate := f.conn.Create(&other).Error; errCreate != nil {
		t.Fatalf("create company: %v", errCreate)
	}

	_, errComplete := f.svc.CompleteDirect(context.Background(), other.ID, request.ID)
	if !errors.Is(errComplete, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found across companies, got %v", errComplete)
	}
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.RequestStatusPending, models.RequestStatusConfirmed, true},
		{models.RequestStatusPending, models.RequestStatusRejected, true},
		{models.RequestStatusPending, models.RequestStatusCompleted, true},
		{models.RequestStatusConfirmed, models.RequestStatusCompleted, true},
		{models.RequestStatusConfirmed, models.RequestStatusPending, false},
		{models.RequestStatusCompleted, models.RequestStatusRejected, false},
		{models.RequestStatusRejected, models.RequestStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s): expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
