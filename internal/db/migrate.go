package db

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/security"
)

// Migrate creates or updates the schema and seeds required rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Company{},
		&models.User{},
		&models.Customer{},
		&models.Product{},
		&models.Reward{},
		&models.PurchaseRequest{},
		&models.LoyaltyTransaction{},
		&models.VerificationCode{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	return seedDefaultAdmin(conn)
}

// seedDefaultAdmin creates an initial super admin when none exists.
func seedDefaultAdmin(conn *gorm.DB) error {
	var admin models.Admin
	errFind := conn.Order("id ASC").First(&admin).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query admins: %w", errFind)
	}

	password, errGen := security.GenerateRandomString(16)
	if errGen != nil {
		return fmt.Errorf("db: generate admin password: %w", errGen)
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("db: hash admin password: %w", errHash)
	}

	seeded := models.Admin{
		Username:     "admin",
		Password:     hash,
		Active:       true,
		IsSuperAdmin: true,
		Permissions:  []byte("[]"),
	}
	if errCreate := conn.Create(&seeded).Error; errCreate != nil {
		return fmt.Errorf("db: seed admin: %w", errCreate)
	}

	log.Warnf("seeded initial admin account username=admin password=%s (change it immediately)", password)
	return nil
}
