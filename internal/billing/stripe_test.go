package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

const testWebhookSecret = "whsec_test"

func sign(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

const subscriptionEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "customer.subscription.updated",
  "data": {
    "object": {
      "id": "sub_1",
      "object": "subscription",
      "customer": "cus_1",
      "status": "active",
      "items": {
        "object": "list",
        "data": [
          {"id": "si_1", "object": "subscription_item", "price": {"id": "price_1", "object": "price", "product": "prod_1"}}
        ]
      }
    }
  }
}`

func TestConstructEventSubscription(t *testing.T) {
	payload := []byte(subscriptionEvent)

	event, err := constructEvent(payload, sign(t, payload, testWebhookSecret), testWebhookSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventSubscriptionUpdated, event.Type)
	require.NotNil(t, event.Subscription)
	assert.Equal(t, "sub_1", event.Subscription.ID)
	assert.Equal(t, "cus_1", event.Subscription.CustomerID)
	assert.Equal(t, "active", event.Subscription.Status)
	assert.Equal(t, "price_1", event.Subscription.PriceID)
	assert.Equal(t, "prod_1", event.Subscription.ProductID)
	assert.Empty(t, event.Subscription.PlanName)
}

func TestConstructEventBadSignature(t *testing.T) {
	payload := []byte(subscriptionEvent)

	_, err := constructEvent(payload, sign(t, payload, "whsec_other"), testWebhookSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = constructEvent(payload, "", testWebhookSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestConstructEventOtherType(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	event, err := constructEvent(payload, sign(t, payload, testWebhookSecret), testWebhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", event.Type)
	assert.Nil(t, event.Subscription)
}

func TestSubscriptionFromStripeExpanded(t *testing.T) {
	sub := &stripe.Subscription{
		ID:       "sub_9",
		Status:   stripe.SubscriptionStatusTrialing,
		Customer: &stripe.Customer{ID: "cus_9"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_9", Product: &stripe.Product{ID: "prod_9", Name: "Plus"}}},
			},
		},
	}

	got := subscriptionFromStripe(sub)
	assert.Equal(t, &Subscription{
		ID:         "sub_9",
		CustomerID: "cus_9",
		Status:     "trialing",
		PriceID:    "price_9",
		ProductID:  "prod_9",
		PlanName:   "Plus",
	}, got)
}

func TestCheckoutSessionFromStripe(t *testing.T) {
	got := checkoutSessionFromStripe(&stripe.CheckoutSession{
		ID:                "cs_1",
		URL:               "https://checkout.stripe.com/c/cs_1",
		ClientReferenceID: "12",
		Customer:          &stripe.Customer{ID: "cus_1"},
		Subscription:      &stripe.Subscription{ID: "sub_1"},
	})

	assert.Equal(t, "cus_1", got.CustomerID)
	assert.Equal(t, "sub_1", got.SubscriptionID)
	assert.Equal(t, "12", got.ClientReferenceID)

	empty := checkoutSessionFromStripe(&stripe.CheckoutSession{ID: "cs_2"})
	assert.Empty(t, empty.CustomerID)
	assert.Empty(t, empty.SubscriptionID)
}

func TestPriceAndProductFromStripe(t *testing.T) {
	price := priceFromStripe(&stripe.Price{
		ID:         "price_1",
		UnitAmount: 800,
		Currency:   stripe.CurrencyUSD,
		Product:    &stripe.Product{ID: "prod_1"},
		Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth, TrialPeriodDays: 7},
	})
	assert.Equal(t, Price{ID: "price_1", ProductID: "prod_1", UnitAmount: 800, Currency: "usd", Interval: "month", TrialPeriodDays: 7}, price)

	product := productFromStripe(&stripe.Product{ID: "prod_1", Name: "Base", DefaultPrice: &stripe.Price{ID: "price_1"}})
	assert.Equal(t, Product{ID: "prod_1", Name: "Base", DefaultPriceID: "price_1"}, product)
}

func TestClientReference(t *testing.T) {
	id, err := ParseClientReference(ClientReference(77))
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := ParseClientReference(bad)
		assert.Error(t, err, bad)
	}
}
