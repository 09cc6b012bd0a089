package models

import (
	"time"

	"gorm.io/datatypes"
)

// Purchase request types.
const (
	// RequestTypePurchase earns points for bought products.
	RequestTypePurchase = "purchase"
	// RequestTypeRedeem spends points on a single reward.
	RequestTypeRedeem = "redeem"
)

// Purchase request statuses.
const (
	// RequestStatusPending awaits a company decision.
	RequestStatusPending = "pending"
	// RequestStatusConfirmed has a verification code issued.
	RequestStatusConfirmed = "confirmed"
	// RequestStatusCompleted has posted to the ledger. Terminal.
	RequestStatusCompleted = "completed"
	// RequestStatusRejected was declined by the company. Terminal.
	RequestStatusRejected = "rejected"
)

// RequestItem is one line of a purchase request, stored inside the Items
// JSON column. Unit values are resolved server-side from the catalog at
// submission time, never taken from the client.
type RequestItem struct {
	ID     uint64  `json:"id"`     // Product or reward ID.
	Name   string  `json:"name"`   // Name at submission time.
	Qty    int     `json:"qty"`    // Quantity.
	Price  float64 `json:"price"`  // Unit price at submission time.
	Points int64   `json:"points"` // Unit points at submission time.
}

// PurchaseRequest is the transactional unit of the loyalty workflow.
type PurchaseRequest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PublicID string `gorm:"type:text;not null;uniqueIndex"` // External UUID handed to customers.

	CompanyID  uint64    `gorm:"not null;index"`        // Owning company ID.
	Company    *Company  `gorm:"foreignKey:CompanyID"`  // Owning company record.
	CustomerID uint64    `gorm:"not null;index"`        // Submitting customer ID.
	Customer   *Customer `gorm:"foreignKey:CustomerID"` // Submitting customer record.

	Type  string         `gorm:"type:text;not null"`  // purchase or redeem.
	Items datatypes.JSON `gorm:"type:jsonb;not null"` // Ordered RequestItem list.

	TotalAmount float64 `gorm:"type:decimal(20,2);not null;default:0"` // Sum of price*qty; 0 for redeem.
	TotalPoints int64   `gorm:"not null;default:0"`                    // Sum of points*qty.

	Status string `gorm:"type:text;not null;default:'pending';index"` // Workflow status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
