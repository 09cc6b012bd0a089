package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qrido/qrido-server/internal/loyalty"
	"github.com/qrido/qrido-server/internal/models"
	"github.com/qrido/qrido-server/internal/realtime"
	"github.com/qrido/qrido-server/internal/tier"
	"github.com/qrido/qrido-server/internal/util"
	"github.com/qrido/qrido-server/internal/verification"
)

// Service drives the purchase request workflow. Every state change runs in
// one database transaction together with its side effects (code issuance,
// ledger posting, balance update) and publishes a realtime event on commit.
type Service struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewService constructs a Service. hub may be nil in tests.
func NewService(db *gorm.DB, hub *realtime.Hub) *Service {
	return &Service{db: db, hub: hub}
}

// SubmitItem is one requested line, identified by catalog ID only. Unit
// values are resolved from the catalog, never trusted from the client.
type SubmitItem struct {
	ID  uint64 `json:"id"`
	Qty int    `json:"qty"`
}

// SubmitParams carries a customer submission.
type SubmitParams struct {
	CompanyID     uint64
	Type          string
	Items         []SubmitItem
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
}

// Submit resolves the cart against the catalog, enrolls the customer when
// new (subject to the plan's customer cap), and creates a pending request.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.PurchaseRequest, error) {
	if params.Type != models.RequestTypePurchase && params.Type != models.RequestTypeRedeem {
		return nil, fmt.Errorf("unknown request type: %s", params.Type)
	}
	if len(params.Items) == 0 {
		return nil, ErrEmptyItems
	}
	phone := util.NormalizePhone(params.CustomerPhone)
	if phone == "" {
		return nil, errors.New("customer phone is required")
	}

	var request *models.PurchaseRequest
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, errCustomer := s.findOrEnrollCustomer(ctx, tx, params.CompanyID, params.CustomerName, phone, params.CustomerEmail)
		if errCustomer != nil {
			return errCustomer
		}

		items, errResolve := s.resolveItems(ctx, tx, params, customer)
		if errResolve != nil {
			return errResolve
		}

		amount, points := loyalty.ComputeTotals(items)
		if params.Type == models.RequestTypeRedeem {
			amount = 0
		}

		itemsJSON, errEncode := json.Marshal(items)
		if errEncode != nil {
			return errEncode
		}

		created := models.PurchaseRequest{
			PublicID:    uuid.NewString(),
			CompanyID:   params.CompanyID,
			CustomerID:  customer.ID,
			Type:        params.Type,
			Items:       itemsJSON,
			TotalAmount: amount,
			TotalPoints: points,
			Status:      models.RequestStatusPending,
		}
		if errCreate := tx.Create(&created).Error; errCreate != nil {
			return errCreate
		}
		request = &created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	s.publish(ctx, request, realtime.KindCreated)
	log.Infof("purchase request submitted company=%d request=%s type=%s phone=%s",
		params.CompanyID, request.PublicID, request.Type, util.MaskPhone(phone))
	return request, nil
}

// Confirm issues a verification code and moves pending -> confirmed.
func (s *Service) Confirm(ctx context.Context, companyID, requestID uint64) (*models.PurchaseRequest, *models.VerificationCode, error) {
	var request *models.PurchaseRequest
	var code *models.VerificationCode
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, errLoad := s.lockRequest(ctx, tx, companyID, requestID)
		if errLoad != nil {
			return errLoad
		}
		if !CanTransition(locked.Status, models.RequestStatusConfirmed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, locked.Status, models.RequestStatusConfirmed)
		}

		issued, errIssue := verification.Issue(ctx, tx, companyID, locked.ID)
		if errIssue != nil {
			return errIssue
		}

		if errUpdate := tx.Model(locked).Update("status", models.RequestStatusConfirmed).Error; errUpdate != nil {
			return errUpdate
		}
		locked.Status = models.RequestStatusConfirmed
		request = locked
		code = issued
		return nil
	})
	if errTx != nil {
		return nil, nil, errTx
	}

	s.publish(ctx, request, realtime.KindUpdated)
	return request, code, nil
}

// Reject moves pending -> rejected. Terminal, no ledger effect.
func (s *Service) Reject(ctx context.Context, companyID, requestID uint64) (*models.PurchaseRequest, error) {
	var request *models.PurchaseRequest
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, errLoad := s.lockRequest(ctx, tx, companyID, requestID)
		if errLoad != nil {
			return errLoad
		}
		if !CanTransition(locked.Status, models.RequestStatusRejected) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, locked.Status, models.RequestStatusRejected)
		}
		if errUpdate := tx.Model(locked).Update("status", models.RequestStatusRejected).Error; errUpdate != nil {
			return errUpdate
		}
		locked.Status = models.RequestStatusRejected
		request = locked
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	s.publish(ctx, request, realtime.KindUpdated)
	return request, nil
}

// Complete consumes the verification code, posts the ledger entry, and moves
// confirmed -> completed, all in one transaction. A wrong, expired, or
// already-spent code aborts without any ledger effect.
func (s *Service) Complete(ctx context.Context, companyID, requestID uint64, code string) (*models.PurchaseRequest, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, verification.ErrCodeInvalid
	}
	return s.complete(ctx, companyID, requestID, func(tx *gorm.DB, locked *models.PurchaseRequest) error {
		if locked.Status != models.RequestStatusConfirmed {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, locked.Status, models.RequestStatusCompleted)
		}
		return verification.Consume(ctx, tx, companyID, locked.ID, code)
	})
}

// CompleteDirect moves pending -> completed without a code, for redemptions
// and sales the staff resolves in one step at the counter.
func (s *Service) CompleteDirect(ctx context.Context, companyID, requestID uint64) (*models.PurchaseRequest, error) {
	return s.complete(ctx, companyID, requestID, func(tx *gorm.DB, locked *models.PurchaseRequest) error {
		if locked.Status != models.RequestStatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, locked.Status, models.RequestStatusCompleted)
		}
		return nil
	})
}

// complete runs the shared completion path after the per-flow gate.
func (s *Service) complete(ctx context.Context, companyID, requestID uint64, gate func(*gorm.DB, *models.PurchaseRequest) error) (*models.PurchaseRequest, error) {
	var request *models.PurchaseRequest
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, errLoad := s.lockRequest(ctx, tx, companyID, requestID)
		if errLoad != nil {
			return errLoad
		}
		if errGate := gate(tx, locked); errGate != nil {
			return errGate
		}

		if errPost := s.postLedger(ctx, tx, locked); errPost != nil {
			return errPost
		}

		if errUpdate := tx.Model(locked).Update("status", models.RequestStatusCompleted).Error; errUpdate != nil {
			return errUpdate
		}
		locked.Status = models.RequestStatusCompleted
		request = locked
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	s.publish(ctx, request, realtime.KindUpdated)
	s.publishCustomer(ctx, request)
	return request, nil
}

// postLedger applies the request's point effect inside tx.
func (s *Service) postLedger(ctx context.Context, tx *gorm.DB, request *models.PurchaseRequest) error {
	description := fmt.Sprintf("request %s", request.PublicID)
	switch request.Type {
	case models.RequestTypePurchase:
		if request.TotalPoints <= 0 {
			return nil
		}
		_, errApply := loyalty.ApplyEarn(ctx, tx, request.CompanyID, request.CustomerID, request.TotalPoints, &request.ID, description)
		return errApply
	case models.RequestTypeRedeem:
		_, errApply := loyalty.ApplyRedeem(ctx, tx, request.CompanyID, request.CustomerID, request.TotalPoints, &request.ID, description)
		return errApply
	default:
		return fmt.Errorf("unknown request type: %s", request.Type)
	}
}

// lockRequest loads a company's request under a row lock.
func (s *Service) lockRequest(ctx context.Context, tx *gorm.DB, companyID, requestID uint64) (*models.PurchaseRequest, error) {
	var request models.PurchaseRequest
	if errFind := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyID).
		First(&request, requestID).Error; errFind != nil {
		return nil, errFind
	}
	return &request, nil
}

// findOrEnrollCustomer loads the customer by phone or enrolls a new one,
// reserving a slot under the plan's customer cap.
func (s *Service) findOrEnrollCustomer(ctx context.Context, tx *gorm.DB, companyID uint64, name, phone, email string) (*models.Customer, error) {
	var customer models.Customer
	errFind := tx.WithContext(ctx).
		Where("company_id = ? AND phone = ?", companyID, phone).
		First(&customer).Error
	if errFind == nil {
		return &customer, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	if _, errReserve := tier.Reserve(ctx, tx, companyID, tier.ResourceCustomers); errReserve != nil {
		return nil, errReserve
	}

	customer = models.Customer{
		CompanyID: companyID,
		Name:      strings.TrimSpace(name),
		Phone:     phone,
		Email:     strings.TrimSpace(email),
	}
	if customer.Name == "" {
		customer.Name = phone
	}
	if errCreate := tx.WithContext(ctx).Create(&customer).Error; errCreate != nil {
		return nil, errCreate
	}
	return &customer, nil
}

// resolveItems turns submitted IDs into authoritative request items.
func (s *Service) resolveItems(ctx context.Context, tx *gorm.DB, params SubmitParams, customer *models.Customer) ([]models.RequestItem, error) {
	if params.Type == models.RequestTypeRedeem {
		if len(params.Items) != 1 || params.Items[0].Qty > 1 {
			return nil, ErrRedeemSingleReward
		}
		var reward models.Reward
		if errFind := tx.WithContext(ctx).
			Where("company_id = ?", params.CompanyID).
			First(&reward, params.Items[0].ID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, ErrRewardUnavailable
			}
			return nil, errFind
		}
		if !reward.Redeemable(time.Now().UTC()) {
			return nil, ErrRewardUnavailable
		}
		if customer.PointsBalance < reward.PointsRequired {
			return nil, loyalty.ErrInsufficientBalance
		}
		return []models.RequestItem{{
			ID:     reward.ID,
			Name:   reward.Title,
			Qty:    1,
			Price:  0,
			Points: reward.PointsRequired,
		}}, nil
	}

	items := make([]models.RequestItem, 0, len(params.Items))
	for _, submitted := range params.Items {
		if submitted.Qty <= 0 {
			continue
		}
		var product models.Product
		if errFind := tx.WithContext(ctx).
			Where("company_id = ? AND active = ?", params.CompanyID, true).
			First(&product, submitted.ID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: id=%d", ErrProductUnavailable, submitted.ID)
			}
			return nil, errFind
		}
		items = append(items, models.RequestItem{
			ID:     product.ID,
			Name:   product.Name,
			Qty:    submitted.Qty,
			Price:  product.Price,
			Points: product.PointsReward,
		})
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	return items, nil
}

// publish emits the request's change event.
func (s *Service) publish(ctx context.Context, request *models.PurchaseRequest, kind string) {
	if s.hub == nil || request == nil {
		return
	}
	s.hub.Publish(ctx, realtime.Event{
		CompanyID: request.CompanyID,
		Kind:      kind,
		Entity:    realtime.EntityPurchaseRequest,
		ID:        request.ID,
		PublicID:  request.PublicID,
		Status:    request.Status,
	})
}

// publishCustomer emits a balance-changed event after completion.
func (s *Service) publishCustomer(ctx context.Context, request *models.PurchaseRequest) {
	if s.hub == nil || request == nil {
		return
	}
	s.hub.Publish(ctx, realtime.Event{
		CompanyID: request.CompanyID,
		Kind:      realtime.KindUpdated,
		Entity:    realtime.EntityCustomer,
		ID:        request.CustomerID,
	})
}
