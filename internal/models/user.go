package models

import "time"

// User represents a company staff account that signs in to the panel.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text"`                      // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	CompanyID *uint64  `gorm:"index"`                  // Owning company ID.
	Company   *Company `gorm:"foreignKey:CompanyID"`   // Owning company record.
	IsOwner   bool     `gorm:"not null;default:false"` // Whether the user owns the company.

	Active   bool `gorm:"not null;default:true"`  // Whether the account is activated.
	Disabled bool `gorm:"not null;default:false"` // Whether sign-in is blocked.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
