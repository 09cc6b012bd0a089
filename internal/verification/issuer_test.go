package verification

import (
	"context"
	"errors"
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

func TestIssueProducesFourDigitCode(t *testing.T) {
	conn := openTestDB(t)

	issued, errIssue := Issue(context.Background(), conn, 1, 1)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if len(issued.Code) != 4 {
		t.Fatalf("expected a 4-digit code, got %q", issued.Code)
	}
	if issued.Code < "1000" || issued.Code > "9999" {
		t.Fatalf("code out of range: %q", issued.Code)
	}
	if !issued.ExpiresAt.After(time.Now().UTC()) {
		t.Fatalf("expected a future expiry, got %v", issued.ExpiresAt)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	issued, errIssue := Issue(ctx, conn, 1, 7)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	if errConsume := Consume(ctx, conn, 1, 7, issued.Code); errConsume != nil {
		t.Fatalf("first consume: %v", errConsume)
	}
	if errConsume := Consume(ctx, conn, 1, 7, issued.Code); !errors.Is(errConsume, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid on second consume, got %v", errConsume)
	}
}

func TestConsumeRejectsWrongCode(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	issued, errIssue := Issue(ctx, conn, 1, 7)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	wrong := "1234"
	if wrong == issued.Code {
		wrong = "4321"
	}
	if errConsume := Consume(ctx, conn, 1, 7, wrong); !errors.Is(errConsume, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for wrong code, got %v", errConsume)
	}
}

func TestConsumeRejectsExpiredCode(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	expired := models.VerificationCode{
		CompanyID:         1,
		PurchaseRequestID: 9,
		Code:              "5555",
		ExpiresAt:         time.Now().UTC().Add(-time.Minute),
		CreatedAt:         time.Now().UTC().Add(-2 * time.Minute),
	}
	if errCreate := conn.Create(&expired).Error; errCreate != nil {
		t.Fatalf("create code: %v", errCreate)
	}

	if errConsume := Consume(ctx, conn, 1, 9, "5555"); !errors.Is(errConsume, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for expired code, got %v", errConsume)
	}
}

func TestReissueSupersedesEarlierCode(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	first, errFirst := Issue(ctx, conn, 1, 11)
	if errFirst != nil {
		t.Fatalf("first issue: %v", errFirst)
	}
	second, errSecond := Issue(ctx, conn, 1, 11)
	if errSecond != nil {
		t.Fatalf("second issue: %v", errSecond)
	}

	if errConsume := Consume(ctx, conn, 1, 11, first.Code); !errors.Is(errConsume, ErrCodeInvalid) {
		if first.Code == second.Code {
			t.Skip("codes collided, superseding not observable")
		}
		t.Fatalf("expected the first code to be expired, got %v", errConsume)
	}
	if errConsume := Consume(ctx, conn, 1, 11, second.Code); errConsume != nil {
		t.Fatalf("second code should be live: %v", errConsume)
	}
}

func TestPurgeExpiredDeletesLapsedCodes(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	stale := models.VerificationCode{
		CompanyID:         1,
		PurchaseRequestID: 13,
		Code:              "7777",
		ExpiresAt:         time.Now().UTC().Add(-48 * time.Hour),
		CreatedAt:         time.Now().UTC().Add(-49 * time.Hour),
	}
	if errCreate := conn.Create(&stale).Error; errCreate != nil {
		t.Fatalf("create code: %v", errCreate)
	}
	live, errIssue := Issue(ctx, conn, 1, 14)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	purged, errPurge := PurgeExpired(ctx, conn, 24*time.Hour)
	if errPurge != nil {
		t.Fatalf("purge: %v", errPurge)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged code, got %d", purged)
	}

	var count int64
	if errCount := conn.Model(&models.VerificationCode{}).
		Where("purchase_request_id = ?", live.PurchaseRequestID).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count codes: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected the live code to survive, got %d rows", count)
	}
}
