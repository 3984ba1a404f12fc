package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
)

// Payment records one invoice settlement reported by Stripe. Rows are
// upserted by the webhook pipeline keyed on StripeInvoiceID, so replayed
// deliveries never duplicate a payment.
type Payment struct {
	ID                    uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                string              `gorm:"column:user_id;not null;index"`
	SubscriptionID        *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	StripeInvoiceID       string              `gorm:"column:stripe_invoice_id;not null;unique"`
	StripeCustomerID      string              `gorm:"column:stripe_customer_id;index"`
	StripeSubscriptionID  string              `gorm:"column:stripe_subscription_id"`
	Amount                decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency              enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	Status                enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Description           *string             `gorm:"column:description"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	FailureReason         *string             `gorm:"column:failure_reason"`
	Metadata              json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
