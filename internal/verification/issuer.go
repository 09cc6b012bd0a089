package verification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/security"
	"github.com/qrido/qrido-server/internal/settings"
)

// Issuer errors.
var (
	// ErrCodeInvalid indicates no live code matches the input.
	ErrCodeInvalid = errors.New("verification code invalid or expired")
)

// TTL returns the configured code validity window.
func TTL() time.Duration {
	seconds := settings.IntValue(settings.VerificationCodeTTLSecondsKey, settings.DefaultVerificationCodeTTLSeconds)
	if seconds <= 0 {
		seconds = settings.DefaultVerificationCodeTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Issue creates a fresh 4-digit code bound to a purchase request. Re-issuing
// for the same request supersedes earlier codes by expiring them.
func Issue(ctx context.Context, tx *gorm.DB, companyID, requestID uint64) (*models.VerificationCode, error) {
	code, errGen := security.GenerateVerificationCode()
	if errGen != nil {
		return nil, errGen
	}

	now := time.Now().UTC()
	if errExpire := tx.WithContext(ctx).
		Model(&models.VerificationCode{}).
		Where("purchase_request_id = ? AND consumed_at IS NULL AND expires_at > ?", requestID, now).
		Update("expires_at", now).Error; errExpire != nil {
		return nil, errExpire
	}

	issued := models.VerificationCode{
		CompanyID:         companyID,
		PurchaseRequestID: requestID,
		Code:              code,
		ExpiresAt:         now.Add(TTL()),
		CreatedAt:         now,
	}
	if errCreate := tx.WithContext(ctx).Create(&issued).Error; errCreate != nil {
		return nil, errCreate
	}
	return &issued, nil
}

// Consume spends the code bound to a purchase request. The conditional
// update makes the code single-use and enforces expiry at the data layer:
// only a row that is unconsumed and unexpired can transition to consumed.
func Consume(ctx context.Context, tx *gorm.DB, companyID, requestID uint64, code string) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).
		Model(&models.VerificationCode{}).
		Where("company_id = ? AND purchase_request_id = ? AND code = ? AND consumed_at IS NULL AND expires_at > ?",
			companyID, requestID, code, now).
		Update("consumed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeInvalid
	}
	return nil
}

// PurgeExpired deletes codes whose validity window has lapsed.
func PurgeExpired(ctx context.Context, db *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := db.WithContext(ctx).
		Where("expires_at < ? AND consumed_at IS NULL", cutoff).
		Delete(&models.VerificationCode{})
	return result.RowsAffected, result.Error
}
