package models

import "time"

// Product represents a catalog item sold by a company.
type Product struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CompanyID uint64   `gorm:"not null;index"`       // Owning company ID.
	Company   *Company `gorm:"foreignKey:CompanyID"` // Owning company record.

	Name         string  `gorm:"type:text;not null"`            // Display name.
	Price        float64 `gorm:"type:decimal(20,2);not null"`   // Unit price.
	PointsReward int64   `gorm:"not null;default:0"`            // Points granted per unit purchased.

	Active bool `gorm:"not null;default:true"` // Whether the product is offered.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
