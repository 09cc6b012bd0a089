package models

import "time"

// Reward represents a redeemable catalog entry of a company.
type Reward struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyID uint64   `gorm:"not null;index"`       // Owning company ID.
	Company   *Company `gorm:"foreignKey:CompanyID"` // Owning company record.

	Title          string `gorm:"type:text;not null"` // Display title.
	PointsRequired int64  `gorm:"not null"`           // Points needed to redeem.

	ExpiresAt *time.Time // Offer expiry, if any.

	Active bool `gorm:"not null;default:true"` // Whether the reward is offered.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Redeemable reports whether the reward can be redeemed at the given time.
func (r Reward) Redeemable(now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}
