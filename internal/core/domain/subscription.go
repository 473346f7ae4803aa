package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Subscription is a billing-scoped credential granting time-limited access to
// one model's inference endpoint. Rows are written by the billing flow.
type Subscription struct {
	ID        uuid.UUID          `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	UserID    string             `json:"user_id"`
	ModelID   uuid.UUID          `json:"model_id"`
	APIKey    string             `json:"api_key"`
	Status    SubscriptionStatus `json:"status"`
	EndDate   *time.Time         `json:"end_date"`
}

// IsActiveAt reports whether the subscription grants access at t. A past
// end date revokes access even when the status was never flipped to expired.
func (s *Subscription) IsActiveAt(t time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	if s.EndDate != nil && s.EndDate.Before(t) {
		return false
	}
	return true
}
