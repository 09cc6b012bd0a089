package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/realtime"
	"github.com/qrido/qrido-server/internal/verification"
)

// expireBatchSize bounds how many earn rows one sweep run touches.
const expireBatchSize = 500

// codeRetention keeps expired verification codes around briefly for support.
const codeRetention = 24 * time.Hour

// ExpirePoints posts compensating expire entries for earn postings past
// their expiry. The deduction is clamped at the current balance: points the
// customer already spent are not double-charged.
func ExpirePoints(ctx context.Context, db *gorm.DB, hub *realtime.Hub) (int, error) {
	now := time.Now().UTC()

	var due []models.LoyaltyTransaction
	if errFind := db.WithContext(ctx).
		Where("type = ? AND expired_at IS NULL AND expires_at IS NOT NULL AND expires_at < ?", models.TransactionEarn, now).
		Order("expires_at ASC").
		Limit(expireBatchSize).
		Find(&due).Error; errFind != nil {
		return 0, errFind
	}

	expired := 0
	for _, earn := range due {
		errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var customer models.Customer
			if errLock := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&customer, earn.CustomerID).Error; errLock != nil {
				return errLock
			}

			deduct := earn.Points
			if deduct > customer.PointsBalance {
				deduct = customer.PointsBalance
			}
			if deduct > 0 {
				entry := models.LoyaltyTransaction{
					CompanyID:   earn.CompanyID,
					CustomerID:  earn.CustomerID,
					Type:        models.TransactionExpire,
					Points:      -deduct,
					Description: "points expired",
					CreatedAt:   now,
				}
				if errCreate := tx.Create(&entry).Error; errCreate != nil {
					return errCreate
				}
				if errUpdate := tx.Model(&models.Customer{}).
					Where("id = ?", customer.ID).
					Update("points_balance", gorm.Expr("points_balance - ?", deduct)).Error; errUpdate != nil {
					return errUpdate
				}
			}

			return tx.Model(&models.LoyaltyTransaction{}).
				Where("id = ? AND expired_at IS NULL", earn.ID).
				Update("expired_at", now).Error
		})
		if errTx != nil {
			return expired, errTx
		}
		expired++
		if hub != nil {
			hub.Publish(ctx, realtime.Event{
				CompanyID: earn.CompanyID,
				Kind:      realtime.KindUpdated,
				Entity:    realtime.EntityCustomer,
				ID:        earn.CustomerID,
			})
		}
	}
	return expired, nil
}

// PurgeCodes removes verification codes past the retention window.
func PurgeCodes(ctx context.Context, db *gorm.DB) (int64, error) {
	return verification.PurgeExpired(ctx, db, codeRetention)
}

// DowngradePartnerships switches companies with a lapsed partnership back
// to the basic plan. The end date is kept for audit.
func DowngradePartnerships(ctx context.Context, db *gorm.DB, hub *realtime.Hub) (int, error) {
	now := time.Now().UTC()

	var lapsed []models.Company
	if errFind := db.WithContext(ctx).
		Where("plan = ? AND partnership_ends_at IS NOT NULL AND partnership_ends_at < ?", models.PlanPartnership, now).
		Find(&lapsed).Error; errFind != nil {
		return 0, errFind
	}

	downgraded := 0
	for _, company := range lapsed {
		result := db.WithContext(ctx).
			Model(&models.Company{}).
			Where("id = ? AND plan = ?", company.ID, models.PlanPartnership).
			Update("plan", models.PlanBasic)
		if result.Error != nil {
			return downgraded, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		downgraded++
		if hub != nil {
			hub.Publish(ctx, realtime.Event{
				CompanyID: company.ID,
				Kind:      realtime.KindUpdated,
				Entity:    realtime.EntityCompany,
				ID:        company.ID,
			})
		}
	}
	return downgraded, nil
}
