package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	pkgpubsub "github.com/luxeaccount/luxeaccount-backend/pkg/pubsub"
)

const defaultPublishTimeout = 10 * time.Second

// PaymentFailure describes a failed invoice payment for downstream dunning.
type PaymentFailure struct {
	UserID               string    `json:"userId"`
	InvoiceID            string    `json:"invoiceId"`
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
	PlanKey              string    `json:"planKey,omitempty"`
	AmountCents          int64     `json:"amountCents"`
	Currency             string    `json:"currency"`
	FailedAt             time.Time `json:"failedAt"`
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type gcpPublisher struct {
	publisher *pubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.publisher.Publish(ctx, msg)
}

// DunningPublisher emits payment failure events on the billing topic.
// A nil publisher is a no-op so the pipeline works without Pub/Sub configured.
type DunningPublisher struct {
	pub     eventPublisher
	timeout time.Duration
}

// NewDunningPublisher wraps the billing topic publisher from the shared client.
func NewDunningPublisher(client *pkgpubsub.Client) *DunningPublisher {
	if client == nil {
		return nil
	}
	pub := client.BillingPublisher()
	if pub == nil {
		return nil
	}
	return &DunningPublisher{
		pub:     gcpPublisher{publisher: pub},
		timeout: defaultPublishTimeout,
	}
}

// PublishPaymentFailure sends the failure event and waits for the server ack.
func (d *DunningPublisher) PublishPaymentFailure(ctx context.Context, failure PaymentFailure) error {
	if d == nil || d.pub == nil {
		return nil
	}
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("encode payment failure: %w", err)
	}

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": "billing.payment_failed",
			"invoice_id": failure.InvoiceID,
			"user_id":    failure.UserID,
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result := d.pub.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("billing publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish payment failure: %w", err)
	}
	return nil
}
