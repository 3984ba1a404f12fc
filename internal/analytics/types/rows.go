package types

import "time"

// PaymentFactRow is the flattened payment fact written to the warehouse.
type PaymentFactRow struct {
	InvoiceID            string     `bigquery:"invoice_id"`
	UserID               string     `bigquery:"user_id"`
	StripeCustomerID     *string    `bigquery:"stripe_customer_id"`
	StripeSubscriptionID *string    `bigquery:"stripe_subscription_id"`
	PlanKey              *string    `bigquery:"plan_key"`
	AmountCents          int64      `bigquery:"amount_cents"`
	Currency             string     `bigquery:"currency"`
	Status               string     `bigquery:"status"`
	PaidAt               *time.Time `bigquery:"paid_at"`
	RecordedAt           time.Time  `bigquery:"recorded_at"`
}
