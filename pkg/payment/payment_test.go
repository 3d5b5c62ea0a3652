package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test_secret"

func TestToMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"500":    50000,
		"300.00": 30000,
		"19.995": 2000,
		"0.005":  1,
		"0":      0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ToMinorUnits(decimal.RequireFromString(in)), in)
	}
}

func TestCreateCheckoutSessionSendsLineItems(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1","payment_status":"unpaid"}`))
	}))
	defer srv.Close()

	p := NewStripe(StripeConfig{SecretKey: "sk_test_x", BaseURL: srv.URL, MaxRetries: 1})
	sess, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{
		LineItems: []LineItem{
			{Name: "Course A", UnitAmount: 50000, Quantity: 1},
			{Name: "Course B", UnitAmount: 30000, Quantity: 2},
		},
		Currency:          "usd",
		SuccessURL:        "http://app.test/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         "http://app.test/cart",
		ClientReferenceID: "7",
		Metadata:          map[string]string{"userId": "7", "cartId": "3", "courseIds": "[1,2]"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", sess.URL)
	assert.False(t, sess.Paid())

	assert.Equal(t, []string{"payment"}, form["mode"])
	assert.Equal(t, []string{"7"}, form["client_reference_id"])
	assert.Equal(t, []string{"50000"}, form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, []string{"30000"}, form["line_items[1][price_data][unit_amount]"])
	assert.Equal(t, []string{"2"}, form["line_items[1][quantity]"])
	assert.Equal(t, []string{"[1,2]"}, form["metadata[courseIds]"])
}

func TestGetSessionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
	}))
	defer srv.Close()

	p := NewStripe(StripeConfig{SecretKey: "sk_test_x", BaseURL: srv.URL, MaxRetries: 1})
	_, err := p.GetSession(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func signed(payload string, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_status": "paid",
    "client_reference_id": "7",
    "amount_total": 110000,
    "metadata": {"userId": "7", "courseIds": "[1,2]"}
  }}
}`

func TestParseWebhook(t *testing.T) {
	p := NewStripe(StripeConfig{WebhookSecret: testSecret})

	ev, err := p.ParseWebhook([]byte(completedEvent), signed(completedEvent, testSecret))
	require.NoError(t, err)
	assert.Equal(t, EventSessionCompleted, ev.Type)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "cs_test_1", ev.Session.ID)
	assert.True(t, ev.Session.Paid())
	assert.Equal(t, "[1,2]", ev.Session.Metadata["courseIds"])
	assert.EqualValues(t, 110000, ev.Session.AmountTotal)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	p := NewStripe(StripeConfig{WebhookSecret: testSecret})

	_, err := p.ParseWebhook([]byte(completedEvent), signed(completedEvent, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	tampered := completedEvent + " "
	_, err = p.ParseWebhook([]byte(tampered), signed(completedEvent, testSecret))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = p.ParseWebhook([]byte(completedEvent), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookUndecodableSession(t *testing.T) {
	p := NewStripe(StripeConfig{WebhookSecret: testSecret})
	body := `{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","amount_total":"lots"}}}`

	_, err := p.ParseWebhook([]byte(body), signed(body, testSecret))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookOtherObjects(t *testing.T) {
	p := NewStripe(StripeConfig{WebhookSecret: testSecret})
	body := `{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`

	ev, err := p.ParseWebhook([]byte(body), signed(body, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.Nil(t, ev.Session)
}
