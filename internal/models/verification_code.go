package models

import "time"

// VerificationCode binds an in-person handoff to a purchase request.
// Codes are 4 random digits, short-lived, and single-use: consumption is a
// conditional update on consumed_at, so a code can never be spent twice.
type VerificationCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyID         uint64 `gorm:"not null;index"` // Owning company ID.
	PurchaseRequestID uint64 `gorm:"not null;index"` // Bound purchase request ID.

	Code string `gorm:"type:text;not null;index"` // 4-digit numeric code.

	ExpiresAt  time.Time  `gorm:"not null;index"` // Validity deadline.
	ConsumedAt *time.Time // Set exactly once on successful completion.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Issue timestamp.
}
