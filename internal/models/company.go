package models

import "time"

// Subscription plan identifiers.
const (
	// PlanBasic is the free entry plan.
	PlanBasic = "basic"
	// PlanPro is the mid subscription plan.
	PlanPro = "pro"
	// PlanMaster is the top self-service plan.
	PlanMaster = "master"
	// PlanPartnership is a negotiated plan with an end date.
	PlanPartnership = "partnership"
)

// Company represents a tenant business account.
type Company struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"`             // Display name.
	Slug string `gorm:"type:text;not null;uniqueIndex"` // URL-safe identifier used by customer-facing links.

	Email string `gorm:"type:text"` // Contact email.
	Phone string `gorm:"type:text"` // Contact phone.

	Plan              string     `gorm:"type:text;not null;default:'basic'"` // Subscription plan.
	PartnershipEndsAt *time.Time // Partnership plan end date, if any.

	PointsRate float64 `gorm:"type:decimal(10,4);not null;default:1.0"` // Points granted per currency unit spent.

	Active bool `gorm:"not null;default:true"` // Whether the company is enabled.

	Users     []User     `gorm:"foreignKey:CompanyID"` // Related staff accounts.
	Customers []Customer `gorm:"foreignKey:CompanyID"` // Related customers.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// EffectivePlan returns the plan that applies at the given time. An expired
// partnership degrades to basic.
func (c Company) EffectivePlan(now time.Time) string {
	if c.Plan == PlanPartnership && c.PartnershipEndsAt != nil && now.After(*c.PartnershipEndsAt) {
		return PlanBasic
	}
	return c.Plan
}
