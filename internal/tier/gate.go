package tier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qrido/qrido-server/internal/models"
)

// Resource identifiers gated by subscription plans.
const (
	// ResourceCustomers gates customer enrollment.
	ResourceCustomers = "customers"
	// ResourceProducts gates catalog size.
	ResourceProducts = "products"
)

// Unlimited marks a resource without a cap.
const Unlimited = -1

// Gate errors.
var (
	// ErrLimitReached indicates the plan cap is already used up.
	ErrLimitReached = errors.New("tier limit reached")
	// ErrUnknownResource indicates an unsupported resource name.
	ErrUnknownResource = errors.New("unknown resource")
)

// planLimits maps plan -> resource -> cap.
var planLimits = map[string]map[string]int64{
	models.PlanBasic:       {ResourceCustomers: 10, ResourceProducts: 10},
	models.PlanPro:         {ResourceCustomers: 100, ResourceProducts: 100},
	models.PlanMaster:      {ResourceCustomers: 1000, ResourceProducts: 1000},
	models.PlanPartnership: {ResourceCustomers: Unlimited, ResourceProducts: Unlimited},
}

// Result reports the outcome of a limit check.
type Result struct {
	Allowed bool   `json:"allowed"`
	Count   int64  `json:"count"`
	Limit   int64  `json:"limit"`
	Plan    string `json:"plan"`
}

// Limit resolves the cap for a plan and resource. Unknown plans fall back to
// the basic plan limits.
func Limit(plan, resource string) (int64, error) {
	limits, ok := planLimits[plan]
	if !ok {
		limits = planLimits[models.PlanBasic]
	}
	limit, ok := limits[resource]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return limit, nil
}

// Check returns a live {allowed, count, limit} snapshot for the company. The
// count is an aggregate query at call time; use Reserve inside the insert
// transaction to enforce the cap without a check-then-insert race.
func Check(ctx context.Context, db *gorm.DB, company models.Company, resource string) (Result, error) {
	plan := company.EffectivePlan(time.Now().UTC())
	limit, errLimit := Limit(plan, resource)
	if errLimit != nil {
		return Result{}, errLimit
	}

	count, errCount := countResource(ctx, db, company.ID, resource)
	if errCount != nil {
		return Result{}, errCount
	}

	return Result{
		Allowed: limit == Unlimited || count < limit,
		Count:   count,
		Limit:   limit,
		Plan:    plan,
	}, nil
}

// Reserve enforces the cap inside tx: it locks the company row, re-reads the
// plan, re-counts the resource, and returns ErrLimitReached when the insert
// that follows would exceed the cap. Callers must run the insert in the same
// transaction.
func Reserve(ctx context.Context, tx *gorm.DB, companyID uint64, resource string) (Result, error) {
	var company models.Company
	if errFind := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&company, companyID).Error; errFind != nil {
		return Result{}, errFind
	}

	result, errCheck := Check(ctx, tx, company, resource)
	if errCheck != nil {
		return Result{}, errCheck
	}
	if !result.Allowed {
		return result, ErrLimitReached
	}
	return result, nil
}

// countResource counts live rows of the resource for the company.
func countResource(ctx context.Context, db *gorm.DB, companyID uint64, resource string) (int64, error) {
	var count int64
	switch resource {
	case ResourceCustomers:
		if errCount := db.WithContext(ctx).
			Model(&models.Customer{}).
			Where("company_id = ?", companyID).
			Count(&count).Error; errCount != nil {
			return 0, errCount
		}
	case ResourceProducts:
		if errCount := db.WithContext(ctx).
			Model(&models.Product{}).
			Where("company_id = ?", companyID).
			Count(&count).Error; errCount != nil {
			return 0, errCount
		}
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return count, nil
}
