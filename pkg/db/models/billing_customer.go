package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingCustomer maps a principal from the external auth provider to its
// Stripe customer. Created on the first completed checkout; the customer
// portal depends on this row existing.
type BillingCustomer struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           string    `gorm:"column:user_id;not null;uniqueIndex"`
	UserEmail        string    `gorm:"column:user_email"`
	StripeCustomerID string    `gorm:"column:stripe_customer_id;not null;uniqueIndex"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
