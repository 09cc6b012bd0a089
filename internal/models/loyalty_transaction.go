package models

import "time"

// Loyalty transaction types.
const (
	// TransactionEarn credits points from a purchase or point-of-sale entry.
	TransactionEarn = "earn"
	// TransactionRedeem debits points for a reward.
	TransactionRedeem = "redeem"
	// TransactionExpire debits points past their expiry window.
	TransactionExpire = "expire"
)

// LoyaltyTransaction is an immutable ledger entry. Rows are only inserted,
// always in the same transaction as the customer balance update they cause.
type LoyaltyTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyID  uint64    `gorm:"not null;index"`        // Owning company ID.
	CustomerID uint64    `gorm:"not null;index"`        // Affected customer ID.
	Customer   *Customer `gorm:"foreignKey:CustomerID"` // Affected customer record.

	Type   string `gorm:"type:text;not null;index"` // earn, redeem, or expire.
	Points int64  `gorm:"not null"`                 // Signed balance effect.

	PurchaseRequestID *uint64          `gorm:"index"`                         // Originating request, if any.
	PurchaseRequest   *PurchaseRequest `gorm:"foreignKey:PurchaseRequestID"`  // Originating request record.

	Description string `gorm:"type:text"` // Human-readable context.

	ExpiresAt *time.Time `gorm:"index"` // When earned points lapse.
	ExpiredAt *time.Time // When the expiry sweep consumed this row.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Posting timestamp.
}

// TableName overrides the default table name.
func (LoyaltyTransaction) TableName() string {
	return "loyalty_transactions"
}
