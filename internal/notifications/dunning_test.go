package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	id  string
	err error
}

func (f fakeResult) Get(ctx context.Context) (string, error) {
	return f.id, f.err
}

type fakePublisher struct {
	messages []*pubsub.Message
	result   fakeResult
}

func (f *fakePublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return f.result
}

func TestPublishPaymentFailure(t *testing.T) {
	fake := &fakePublisher{result: fakeResult{id: "m1"}}
	pub := &DunningPublisher{pub: fake, timeout: time.Second}

	failure := PaymentFailure{
		UserID:      "u1",
		InvoiceID:   "in_1",
		AmountCents: 7900,
		Currency:    "USD",
	}
	require.NoError(t, pub.PublishPaymentFailure(context.Background(), failure))

	require.Len(t, fake.messages, 1)
	msg := fake.messages[0]
	assert.Equal(t, "billing.payment_failed", msg.Attributes["event_type"])
	assert.Equal(t, "in_1", msg.Attributes["invoice_id"])

	var decoded PaymentFailure
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "u1", decoded.UserID)
	assert.False(t, decoded.FailedAt.IsZero())
}

func TestPublishPaymentFailureNilSafe(t *testing.T) {
	var pub *DunningPublisher
	assert.NoError(t, pub.PublishPaymentFailure(context.Background(), PaymentFailure{InvoiceID: "in_1"}))
}

func TestPublishPaymentFailurePropagatesAckError(t *testing.T) {
	fake := &fakePublisher{result: fakeResult{err: context.DeadlineExceeded}}
	pub := &DunningPublisher{pub: fake, timeout: time.Second}

	err := pub.PublishPaymentFailure(context.Background(), PaymentFailure{InvoiceID: "in_1"})
	assert.Error(t, err)
}
