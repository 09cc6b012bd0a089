package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	dbpkg "github.com/qrido/qrido-server/internal/db"
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

func resetSnapshot(t *testing.T) {
	t.Helper()
	StoreDBConfig(time.Time{}, map[string]json.RawMessage{})
	t.Cleanup(func() {
		StoreDBConfig(time.Time{}, map[string]json.RawMessage{})
	})
}

func TestTypedValuesFallBackWhenAbsent(t *testing.T) {
	resetSnapshot(t)

	if got := StringValue(SiteNameKey, DefaultSiteName); got != DefaultSiteName {
		t.Fatalf("expected fallback %q, got %q", DefaultSiteName, got)
	}
	if got := FloatValue(PointsPerCurrencyKey, DefaultPointsPerCurrency); got != DefaultPointsPerCurrency {
		t.Fatalf("expected fallback %v, got %v", DefaultPointsPerCurrency, got)
	}
	if got := IntValue(PointsExpiryMonthsKey, DefaultPointsExpiryMonths); got != DefaultPointsExpiryMonths {
		t.Fatalf("expected fallback %d, got %d", DefaultPointsExpiryMonths, got)
	}
}

func TestTypedValuesToleratesWrongType(t *testing.T) {
	resetSnapshot(t)
	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		PointsExpiryMonthsKey: json.RawMessage(`"twelve"`),
		SiteNameKey:           json.RawMessage(`""`),
	})

	if got := IntValue(PointsExpiryMonthsKey, DefaultPointsExpiryMonths); got != DefaultPointsExpiryMonths {
		t.Fatalf("expected fallback for non-numeric value, got %d", got)
	}
	if got := StringValue(SiteNameKey, DefaultSiteName); got != DefaultSiteName {
		t.Fatalf("expected fallback for empty string, got %q", got)
	}
}

func TestUpsertRefreshesSnapshot(t *testing.T) {
	resetSnapshot(t)
	conn := openTestDB(t)
	ctx := context.Background()

	if errUpsert := Upsert(ctx, conn, PointsPerCurrencyKey, json.RawMessage(`2.5`)); errUpsert != nil {
		t.Fatalf("upsert: %v", errUpsert)
	}
	if got := FloatValue(PointsPerCurrencyKey, DefaultPointsPerCurrency); got != 2.5 {
		t.Fatalf("expected 2.5 after upsert, got %v", got)
	}

	if errUpsert := Upsert(ctx, conn, PointsPerCurrencyKey, json.RawMessage(`0.5`)); errUpsert != nil {
		t.Fatalf("second upsert: %v", errUpsert)
	}
	if got := FloatValue(PointsPerCurrencyKey, DefaultPointsPerCurrency); got != 0.5 {
		t.Fatalf("expected 0.5 after second upsert, got %v", got)
	}
}

func TestRefreshLoadsAllRows(t *testing.T) {
	resetSnapshot(t)
	conn := openTestDB(t)
	ctx := context.Background()

	if errUpsert := Upsert(ctx, conn, SiteNameKey, json.RawMessage(`"Loyalty Club"`)); errUpsert != nil {
		t.Fatalf("upsert: %v", errUpsert)
	}

	StoreDBConfig(time.Time{}, map[string]json.RawMessage{})
	if errRefresh := RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if got := StringValue(SiteNameKey, DefaultSiteName); got != "Loyalty Club" {
		t.Fatalf("expected refreshed value, got %q", got)
	}
	if DBConfigUpdatedAt().IsZero() {
		t.Fatalf("expected a non-zero updated timestamp")
	}
}
