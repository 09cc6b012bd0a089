package purchase

import (
	"errors"

	"github.com/qrido/qrido-server/internal/models"
)

// State machine errors.
var (
	// ErrInvalidTransition indicates a status change the workflow forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyItems indicates a submission without items.
	ErrEmptyItems = errors.New("request needs at least one item")
	// ErrProductUnavailable indicates a missing or inactive product.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrRewardUnavailable indicates a missing, inactive, or expired reward.
	ErrRewardUnavailable = errors.New("reward unavailable")
	// ErrRedeemSingleReward indicates a redeem cart with more than one line.
	ErrRedeemSingleReward = errors.New("redeem requests reference exactly one reward")
)

// transitions lists the reachable statuses from each status. Completed and
// rejected are terminal.
var transitions = map[string][]string{
	models.RequestStatusPending:   {models.RequestStatusConfirmed, models.RequestStatusRejected, models.RequestStatusCompleted},
	models.RequestStatusConfirmed: {models.RequestStatusCompleted},
}

// CanTransition reports whether from -> to is a legal workflow step.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
