package models

import "time"

// Customer represents an enrolled loyalty member of one company.
// The points balance is a denormalized running total; every change to it is
// posted together with a LoyaltyTransaction row in the same transaction.
type Customer struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyID uint64   `gorm:"not null;index;uniqueIndex:idx_customers_company_phone"` // Owning company ID.
	Company   *Company `gorm:"foreignKey:CompanyID"`                                   // Owning company record.

	Name  string `gorm:"type:text;not null"`                                       // Display name.
	Phone string `gorm:"type:text;not null;uniqueIndex:idx_customers_company_phone"` // Phone, unique per company.
	Email string `gorm:"type:text"`                                                // Contact email.

	PointsBalance int64 `gorm:"not null;default:0"` // Current loyalty point balance.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
