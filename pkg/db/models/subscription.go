package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
)

// Subscription persists Stripe subscription state per principal. UserID is
// the identifier issued by the external auth provider, not a local key.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               string                   `gorm:"column:user_id;not null;index"`
	UserEmail            string                   `gorm:"column:user_email"`
	PlanKey              enums.PlanKey            `gorm:"column:plan_key;not null"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;unique"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;index"`
	PriceID              *string                  `gorm:"column:price_id"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     time.Time                `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	Metadata             json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
