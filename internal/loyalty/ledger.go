package loyalty

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/settings"
)

// Ledger errors.
var (
	// ErrInsufficientBalance indicates a redeem would drive the balance negative.
	ErrInsufficientBalance = errors.New("insufficient points balance")
	// ErrNonPositivePoints indicates a posting with zero or negative points.
	ErrNonPositivePoints = errors.New("points must be positive")
)

// EarnPoints converts a sale amount into points at the given rate.
// Fractions are floored, never rounded up.
func EarnPoints(amount, rate float64) int64 {
	if amount <= 0 || rate <= 0 {
		return 0
	}
	return int64(math.Floor(amount * rate))
}

// Rate returns the earn rate for a company, falling back to the
// platform-wide default when the company has none configured.
func Rate(company models.Company) float64 {
	if company.PointsRate > 0 {
		return company.PointsRate
	}
	return settings.FloatValue(settings.PointsPerCurrencyKey, settings.DefaultPointsPerCurrency)
}

// ComputeTotals sums amount and points over request items.
func ComputeTotals(items []models.RequestItem) (float64, int64) {
	var amount float64
	var points int64
	for _, item := range items {
		qty := item.Qty
		if qty <= 0 {
			continue
		}
		amount += item.Price * float64(qty)
		points += item.Points * int64(qty)
	}
	return amount, points
}

// earnExpiry returns the expiry timestamp for an earn posting.
func earnExpiry(now time.Time) time.Time {
	months := settings.IntValue(settings.PointsExpiryMonthsKey, settings.DefaultPointsExpiryMonths)
	if months <= 0 {
		months = settings.DefaultPointsExpiryMonths
	}
	return now.AddDate(0, months, 0)
}

// ApplyEarn credits points to a customer inside an existing transaction.
// It locks the customer row, appends the ledger entry, and increments the
// balance, so the ledger and the running total can never diverge.
func ApplyEarn(ctx context.Context, tx *gorm.DB, companyID, customerID uint64, points int64, requestID *uint64, description string) (*models.LoyaltyTransaction, error) {
	if points <= 0 {
		return nil, ErrNonPositivePoints
	}

	var customer models.Customer
	if errFind := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyID).
		First(&customer, customerID).Error; errFind != nil {
		return nil, errFind
	}

	now := time.Now().UTC()
	expiresAt := earnExpiry(now)
	entry := models.LoyaltyTransaction{
		CompanyID:         companyID,
		CustomerID:        customerID,
		Type:              models.TransactionEarn,
		Points:            points,
		PurchaseRequestID: requestID,
		Description:       description,
		ExpiresAt:         &expiresAt,
		CreatedAt:         now,
	}
	if errCreate := tx.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		return nil, errCreate
	}

	if errUpdate := tx.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("points_balance", gorm.Expr("points_balance + ?", points)).Error; errUpdate != nil {
		return nil, errUpdate
	}

	return &entry, nil
}

// ApplyRedeem debits points from a customer inside an existing transaction.
// The balance check happens under the row lock, so concurrent redemptions
// cannot drive the balance negative.
func ApplyRedeem(ctx context.Context, tx *gorm.DB, companyID, customerID uint64, points int64, requestID *uint64, description string) (*models.LoyaltyTransaction, error) {
	if points <= 0 {
		return nil, ErrNonPositivePoints
	}

	var customer models.Customer
	if errFind := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyID).
		First(&customer, customerID).Error; errFind != nil {
		return nil, errFind
	}
	if customer.PointsBalance < points {
		return nil, ErrInsufficientBalance
	}

	now := time.Now().UTC()
	entry := models.LoyaltyTransaction{
		CompanyID:         companyID,
		CustomerID:        customerID,
		Type:              models.TransactionRedeem,
		Points:            -points,
		PurchaseRequestID: requestID,
		Description:       description,
		CreatedAt:         now,
	}
	if errCreate := tx.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		return nil, errCreate
	}

	if errUpdate := tx.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("points_balance", gorm.Expr("points_balance - ?", points)).Error; errUpdate != nil {
		return nil, errUpdate
	}

	return &entry, nil
}

// PostEarn runs ApplyEarn in its own transaction.
func PostEarn(ctx context.Context, db *gorm.DB, companyID, customerID uint64, points int64, requestID *uint64, description string) (*models.LoyaltyTransaction, error) {
	var entry *models.LoyaltyTransaction
	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, errApply := ApplyEarn(ctx, tx, companyID, customerID, points, requestID, description)
		if errApply != nil {
			return errApply
		}
		entry = applied
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return entry, nil
}

// PostRedeem runs ApplyRedeem in its own transaction.
func PostRedeem(ctx context.Context, db *gorm.DB, companyID, customerID uint64, points int64, requestID *uint64, description string) (*models.LoyaltyTransaction, error) {
	var entry *models.LoyaltyTransaction
	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, errApply := ApplyRedeem(ctx, tx, companyID, customerID, points, requestID, description)
		if errApply != nil {
			return errApply
		}
		entry = applied
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return entry, nil
}
